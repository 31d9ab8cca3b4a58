package engines

import (
	"testing"

	"transcribeflow/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseID(t *testing.T) {
	for _, valid := range []string{"whisper-cpp", "deepgram", "assemblyai"} {
		id, err := ParseID(valid)
		require.NoError(t, err)
		assert.Equal(t, valid, string(id))
	}

	_, err := ParseID("whisperx")
	assert.Error(t, err)
	_, err = ParseID("")
	assert.Error(t, err)
}

func TestNew_ConstructsEveryCatalogEntry(t *testing.T) {
	cfg := &config.Config{}
	cfg.Whisper.BinaryPath = "whisper-cli"

	for _, info := range Catalog() {
		eng, err := New(info.ID, cfg)
		require.NoError(t, err, string(info.ID))
		assert.Equal(t, string(info.ID), eng.Name())
	}
}

func TestNew_UnknownID(t *testing.T) {
	_, err := New(ID("bogus"), &config.Config{})
	assert.Error(t, err)
}

func TestCatalog_IsACopy(t *testing.T) {
	c := Catalog()
	require.NotEmpty(t, c)
	c[0].ID = ID("mutated")
	assert.NotEqual(t, ID("mutated"), Catalog()[0].ID)
}
