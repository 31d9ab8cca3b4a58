package artifacts

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Read loads transcript.json from a job output directory.
func Read(outputDir string) (*Transcript, error) {
	data, err := os.ReadFile(filepath.Join(outputDir, "transcript.json"))
	if err != nil {
		return nil, fmt.Errorf("read transcript: %w", err)
	}
	var tr Transcript
	if err := json.Unmarshal(data, &tr); err != nil {
		return nil, fmt.Errorf("parse transcript: %w", err)
	}
	return &tr, nil
}

// Rewrite persists a modified transcript back into its output
// directory, regenerating the text rendering so the two stay in sync.
func Rewrite(outputDir string, tr *Transcript) error {
	if err := writeJSON(filepath.Join(outputDir, "transcript.json"), tr); err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(outputDir, "transcript.txt"),
		[]byte(formatTranscriptText(tr)), 0o644); err != nil {
		return fmt.Errorf("write transcript.txt: %w", err)
	}
	return nil
}
