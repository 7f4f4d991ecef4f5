package basalt

import (
	"testing"

	"github.com/basaltchain/basalt/src/config"
)

func TestInitStoreBootstrap(t *testing.T) {
	// Bootstrap loads the chain from an existing database; with none on
	// disk it must fail rather than silently start fresh.
	conf := config.NewTestConfig(t)
	conf.SetDataDir(t.TempDir())
	conf.Store = true
	conf.Bootstrap = true

	engine := NewBasalt(conf)

	if err := engine.initStore(); err == nil {
		engine.Store.Close()
		t.Fatal("bootstrap without an existing database should fail")
	}

	// Without bootstrap a fresh database is created in place.
	conf.Bootstrap = false
	if err := engine.initStore(); err != nil {
		t.Fatal(err)
	}
	if err := engine.Store.Close(); err != nil {
		t.Fatal(err)
	}

	// The database exists now, so bootstrap succeeds.
	conf.Bootstrap = true
	if err := engine.initStore(); err != nil {
		t.Fatal(err)
	}
	if err := engine.Store.Close(); err != nil {
		t.Fatal(err)
	}
}
