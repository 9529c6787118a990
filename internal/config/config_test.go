package config

import "testing"

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "test-key")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	// Every extension the extractor handles must be accepted by default.
	for _, ext := range []string{".pdf", ".txt", ".html", ".htm", ".xlsx"} {
		found := false
		for _, a := range cfg.AllowedExtensions {
			if a == ext {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("default AllowedExtensions missing %q: %v", ext, cfg.AllowedExtensions)
		}
	}

	if cfg.IngestionBatch != 10 {
		t.Errorf("IngestionBatch = %d, want 10", cfg.IngestionBatch)
	}
	if cfg.RAGTopK != 4 {
		t.Errorf("RAGTopK = %d, want 4", cfg.RAGTopK)
	}
	if cfg.SnippetLength != 200 {
		t.Errorf("SnippetLength = %d, want 200", cfg.SnippetLength)
	}
	if cfg.IndexSentinelID != "__DOCUMENT_INDEX__" {
		t.Errorf("IndexSentinelID = %q", cfg.IndexSentinelID)
	}
}

func TestLoadConfigRequiresAPIKey(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")

	if _, err := LoadConfig(); err == nil {
		t.Fatal("expected error for missing GEMINI_API_KEY")
	}
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "test-key")
	t.Setenv("ALLOWED_EXTENSIONS", ".txt")
	t.Setenv("RAG_K_DOCUMENTS", "7")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if len(cfg.AllowedExtensions) != 1 || cfg.AllowedExtensions[0] != ".txt" {
		t.Errorf("AllowedExtensions = %v", cfg.AllowedExtensions)
	}
	if cfg.RAGTopK != 7 {
		t.Errorf("RAGTopK = %d, want 7", cfg.RAGTopK)
	}
}
