package config

import "testing"

func TestLoadDefaults(t *testing.T) {
	t.Setenv("CEREMONY_MASTER_ACCOUNT", "")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.SignatureScheme != "ed25519" {
		t.Errorf("SignatureScheme = %q, want ed25519", cfg.SignatureScheme)
	}
	if cfg.CeremonyReward != 1000 {
		t.Errorf("CeremonyReward = %d, want 1000", cfg.CeremonyReward)
	}
	if cfg.GenesisCeremonyIndex != 1 {
		t.Errorf("GenesisCeremonyIndex = %d, want 1", cfg.GenesisCeremonyIndex)
	}
}

func TestValidateRequiresMasterAccount(t *testing.T) {
	cfg := &Config{SignatureScheme: "ed25519"}
	if err := cfg.Validate(); err == nil {
		t.Fatal("Validate accepted config with no CeremonyMasterAccount")
	}
}

func TestValidateRejectsUnknownSignatureScheme(t *testing.T) {
	cfg := &Config{CeremonyMasterAccount: "0xabc", SignatureScheme: "rsa"}
	if err := cfg.Validate(); err == nil {
		t.Fatal("Validate accepted unknown signature scheme")
	}
}

func TestValidateRequiresBLSKeyPathForBLSScheme(t *testing.T) {
	cfg := &Config{CeremonyMasterAccount: "0xabc", SignatureScheme: "bls"}
	if err := cfg.Validate(); err == nil {
		t.Fatal("Validate accepted bls scheme with no BLSKeyPath")
	}

	cfg.BLSKeyPath = "/tmp/bls.key"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate rejected complete bls config: %v", err)
	}
}

func TestValidateForDevelopment(t *testing.T) {
	cfg := &Config{}
	if err := cfg.ValidateForDevelopment(); err == nil {
		t.Fatal("ValidateForDevelopment accepted config with no CeremonyMasterAccount")
	}

	cfg.CeremonyMasterAccount = "0xabc"
	if err := cfg.ValidateForDevelopment(); err != nil {
		t.Fatalf("ValidateForDevelopment rejected minimal config: %v", err)
	}
}
