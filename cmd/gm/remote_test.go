package main

import (
	"os"
	"testing"
)

func TestRemotesConfigRoundTrip(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	in := RemotesConfig{
		Active: "lab",
		Remotes: map[string]Remote{
			"lab": {
				URL:         "http://fridge-pc:7667",
				Token:       "tok_abc",
				NATSURL:     "nats://fridge-pc:4222",
				Description: "dilution fridge",
			},
			"local": {URL: "http://localhost:7667"},
		},
	}
	if err := saveRemotesConfig(in); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := loadRemotesConfig()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.Active != "lab" {
		t.Errorf("Active = %q, want %q", got.Active, "lab")
	}
	lab := got.Remotes["lab"]
	if lab.URL != "http://fridge-pc:7667" || lab.Token != "tok_abc" ||
		lab.NATSURL != "nats://fridge-pc:4222" || lab.Description != "dilution fridge" {
		t.Errorf("lab remote = %+v, wrong values", lab)
	}
	if got.Remotes == nil {
		t.Error("Remotes map must not be nil after load")
	}
}

func TestLoadRemotesConfig_NoFile(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	cfg, err := loadRemotesConfig()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Active != "" || len(cfg.Remotes) != 0 {
		t.Errorf("expected empty config, got %+v", cfg)
	}
}

func TestSaveRemotesConfig_Permissions(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	if err := saveRemotesConfig(RemotesConfig{Remotes: map[string]Remote{}}); err != nil {
		t.Fatalf("save: %v", err)
	}
	path, err := remoteConfigPath()
	if err != nil {
		t.Fatalf("config path: %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Errorf("remotes.toml mode = %o, want 600", perm)
	}
}

func TestMaskToken(t *testing.T) {
	cases := map[string]string{
		"":                 "",
		"short":            "short",
		"tok_abcdefghijkl": "tok_abcd********",
	}
	for in, want := range cases {
		if got := maskToken(in); got != want {
			t.Errorf("maskToken(%q) = %q, want %q", in, got, want)
		}
	}
}
