package main

import (
	"os"
	"path/filepath"
	"testing"
)

func TestResolveRunConfigPrecedence(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "run.yaml")
	yamlBody := `table: table.biom
metadata: md.tsv
category: bodysite
output_dir: out
cv: 10
parameter_tuning: true
`
	if err := os.WriteFile(configPath, []byte(yamlBody), 0o644); err != nil {
		t.Fatal(err)
	}

	cmd := newClassifyCmd()
	if err := cmd.ParseFlags([]string{"--config", configPath, "--cv", "3"}); err != nil {
		t.Fatal(err)
	}

	fl := defaultRunConfig()
	fl.CV = 3
	cfg, err := resolveRunConfig(cmd, fl, configPath)
	if err != nil {
		t.Fatalf("resolveRunConfig: %v", err)
	}

	if cfg.Table != "table.biom" || cfg.Category != "bodysite" {
		t.Errorf("yaml values not applied: %+v", cfg)
	}
	if cfg.CV != 3 {
		t.Errorf("explicit --cv should override yaml, got %d", cfg.CV)
	}
	if !cfg.ParameterTuning {
		t.Error("yaml parameter_tuning should survive when flag untouched")
	}
	if cfg.TestSize != 0.2 {
		t.Errorf("default test size expected, got %v", cfg.TestSize)
	}
}

func TestResolveRunConfigMissingRequired(t *testing.T) {
	cmd := newClassifyCmd()
	if err := cmd.ParseFlags([]string{"--cv", "3"}); err != nil {
		t.Fatal(err)
	}
	if _, err := resolveRunConfig(cmd, defaultRunConfig(), ""); err == nil {
		t.Error("expected error when table/metadata/category/output-dir are unset")
	}
}
