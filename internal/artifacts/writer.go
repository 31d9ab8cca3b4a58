package artifacts

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"transcribeflow/internal/models"
)

// speakerColors is the stable palette assigned to speakers in the
// order they first appear in the transcript.
var speakerColors = []string{"#3B82F6", "#10B981", "#F59E0B", "#EF4444", "#8B5CF6", "#EC4899"}

// Writer persists transcript artifacts into job-scoped directories
// under the transcribed base path.
type Writer struct {
	baseDir string
	now     func() time.Time
}

func NewWriter(baseDir string) *Writer {
	return &Writer{baseDir: baseDir, now: time.Now}
}

// Speaker is one entry in the transcript's speakers dictionary.
type Speaker struct {
	Name  string `json:"name"`
	Color string `json:"color"`
}

// Transcript is the on-disk transcript.json structure.
type Transcript struct {
	Metadata struct {
		ID              string  `json:"id"`
		Filename        string  `json:"filename"`
		DurationSeconds float64 `json:"duration_seconds"`
		CreatedAt       string  `json:"created_at"`
		Engine          string  `json:"engine"`
		Model           string  `json:"model"`
		Language        string  `json:"language"`
	} `json:"metadata"`
	Speakers map[string]Speaker `json:"speakers"`
	Segments []models.Segment   `json:"segments"`
	Words    []models.Word      `json:"words"`
	Stats    struct {
		TotalWords        int     `json:"total_words"`
		SpeakersCount     int     `json:"speakers_count"`
		LanguageDetected  string  `json:"language_detected"`
		ProcessingSeconds float64 `json:"processing_seconds"`
	} `json:"stats"`
}

// Write creates the job-scoped output directory, copies the source
// audio in for traceability, and writes transcript.json, a
// human-readable transcript.txt, and, when present, the raw vendor
// payload. Returns the output directory path.
func (w *Writer) Write(t *models.Transcription, res *models.TranscriptionResult, segments []models.Segment, words []models.Word, speakersCount int) (string, error) {
	outputDir, err := w.createOutputDir(t.OriginalPath)
	if err != nil {
		return "", err
	}

	if err := copyFile(t.OriginalPath, filepath.Join(outputDir, filepath.Base(t.OriginalPath))); err != nil {
		return "", fmt.Errorf("copy source audio: %w", err)
	}

	transcript := w.buildTranscript(t, res, segments, words, speakersCount)

	if err := writeJSON(filepath.Join(outputDir, "transcript.json"), transcript); err != nil {
		return "", err
	}
	if err := os.WriteFile(filepath.Join(outputDir, "transcript.txt"),
		[]byte(formatTranscriptText(transcript)), 0o644); err != nil {
		return "", fmt.Errorf("write transcript.txt: %w", err)
	}
	if len(res.Raw) > 0 {
		if err := os.WriteFile(filepath.Join(outputDir, "raw.json"), res.Raw, 0o644); err != nil {
			return "", fmt.Errorf("write raw vendor payload: %w", err)
		}
	}

	return outputDir, nil
}

func (w *Writer) createOutputDir(audioPath string) (string, error) {
	stem := strings.TrimSuffix(filepath.Base(audioPath), filepath.Ext(audioPath))
	dirName := fmt.Sprintf("%s_%s", w.now().UTC().Format("2006-01-02"), stem)

	if err := os.MkdirAll(w.baseDir, 0o755); err != nil {
		return "", fmt.Errorf("create output base directory: %w", err)
	}

	// Same file transcribed twice on one day gets a numeric suffix
	// instead of clobbering the earlier output.
	outputDir := filepath.Join(w.baseDir, dirName)
	for i := 2; ; i++ {
		err := os.Mkdir(outputDir, 0o755)
		if err == nil {
			return outputDir, nil
		}
		if !os.IsExist(err) {
			return "", fmt.Errorf("create output directory %s: %w", outputDir, err)
		}
		outputDir = filepath.Join(w.baseDir, fmt.Sprintf("%s_%d", dirName, i))
	}
}

func (w *Writer) buildTranscript(t *models.Transcription, res *models.TranscriptionResult, segments []models.Segment, words []models.Word, speakersCount int) *Transcript {
	out := &Transcript{
		Speakers: buildSpeakers(segments),
		Segments: segments,
		Words:    words,
	}
	out.Metadata.ID = t.ID
	out.Metadata.Filename = t.Filename
	out.Metadata.DurationSeconds = res.DurationSeconds
	out.Metadata.CreatedAt = w.now().UTC().Format(time.RFC3339)
	out.Metadata.Engine = t.Engine
	out.Metadata.Model = t.Model
	out.Metadata.Language = res.Language
	out.Stats.TotalWords = len(words)
	out.Stats.SpeakersCount = speakersCount
	out.Stats.LanguageDetected = res.Language
	out.Stats.ProcessingSeconds = res.ProcessingSeconds
	return out
}

// buildSpeakers assigns palette colors to speakers in first-appearance
// order so re-rendering a transcript keeps colors stable.
func buildSpeakers(segments []models.Segment) map[string]Speaker {
	speakers := make(map[string]Speaker)
	for _, seg := range segments {
		id := seg.Speaker
		if id == "" {
			id = models.SpeakerUnknown
		}
		if _, ok := speakers[id]; !ok {
			speakers[id] = Speaker{
				Name:  id,
				Color: speakerColors[len(speakers)%len(speakerColors)],
			}
		}
	}
	return speakers
}

func formatTranscriptText(tr *Transcript) string {
	names := make([]string, 0, len(tr.Speakers))
	for _, seg := range tr.Segments {
		if sp, ok := tr.Speakers[seg.Speaker]; ok && !contains(names, sp.Name) {
			names = append(names, sp.Name)
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Transcription: %s\n", tr.Metadata.Filename)
	fmt.Fprintf(&b, "Date: %s\n", tr.Metadata.CreatedAt[:10])
	fmt.Fprintf(&b, "Duration: %s\n", formatDuration(tr.Metadata.DurationSeconds))
	fmt.Fprintf(&b, "Participants: %s\n", strings.Join(names, ", "))
	b.WriteString("\n" + strings.Repeat("-", 40) + "\n\n")

	for _, seg := range tr.Segments {
		name := "Unknown"
		if sp, ok := tr.Speakers[seg.Speaker]; ok {
			name = sp.Name
		}
		fmt.Fprintf(&b, "[%s] %s: %s\n\n", FormatTimestamp(seg.Start), name, seg.Text)
	}

	b.WriteString(strings.Repeat("-", 40) + "\n")
	return b.String()
}

// FormatTimestamp renders seconds as HH:MM:SS.
func FormatTimestamp(seconds float64) string {
	s := int(seconds)
	return fmt.Sprintf("%02d:%02d:%02d", s/3600, (s%3600)/60, s%60)
}

// formatDuration renders seconds as MM:SS, or H:MM:SS past an hour.
func formatDuration(seconds float64) string {
	s := int(seconds)
	if s >= 3600 {
		return fmt.Sprintf("%d:%02d:%02d", s/3600, (s%3600)/60, s%60)
	}
	return fmt.Sprintf("%d:%02d", s/60, s%60)
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", filepath.Base(path), err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Close()
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
