package bdd

import (
	"os"
	"testing"

	"github.com/cucumber/godog"
	"github.com/joho/godotenv"
)

func TestMain(m *testing.M) {
	// Load .env.test if present, else .env, so local overrides reach the
	// suite. Overload so test values always win over shell/CI env.
	if _, err := os.Stat(".env.test"); err == nil {
		_ = godotenv.Overload(".env.test")
	} else {
		_ = godotenv.Overload()
	}
	os.Exit(m.Run())
}

func TestBDDFeatures(t *testing.T) {
	opts := godog.Options{
		Format: "pretty",
		Paths:  []string{"features"},
		Strict: true,
	}

	suite := godog.TestSuite{
		Name: "ark-payments",
		ScenarioInitializer: func(sc *godog.ScenarioContext) {
			world := NewBrokerWorld(t)
			world.Register(sc)
		},
		Options: &opts,
	}

	if suite.Run() != 0 {
		t.Fail()
	}
}
