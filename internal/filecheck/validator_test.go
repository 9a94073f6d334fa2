package filecheck

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/doc2md/backend/internal/models"
)

func candidate(name, mime string, size int64) models.UploadCandidate {
	return models.UploadCandidate{Name: name, MimeType: mime, Size: size}
}

func TestIsSupported(t *testing.T) {
	tests := []struct {
		name    string
		service models.ServiceSelection
		file    string
		mime    string
		want    bool
	}{
		{"pdf by mime", models.ServiceCloudflare, "a.bin", "application/pdf", true},
		{"mime with params", models.ServiceCloudflare, "a", "text/html; charset=utf-8", true},
		{"mime case-insensitive", models.ServiceCloudflare, "a", "Application/PDF", true},
		{"empty mime falls back to extension", models.ServiceCloudflare, "Report.DOCX", "", true},
		{"unknown mime falls back to extension", models.ServiceCloudflare, "sheet.xlsx", "application/octet-stream", true},
		{"no match", models.ServiceCloudflare, "notes.txt", "text/plain", false},
		{"no extension and no mime", models.ServiceCloudflare, "README", "", false},
		{"pptx only on secondary", models.ServiceCloudflare, "deck.pptx", "", false},
		{"pptx on secondary", models.ServiceMistral, "deck.pptx", "", true},
		{"avif on secondary", models.ServiceMistral, "x", "image/avif", true},
		{"csv not on secondary", models.ServiceMistral, "a.csv", "text/csv", false},
		{"unknown service", models.ServiceSelection("other"), "a.pdf", "application/pdf", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsSupported(tt.service, tt.file, tt.mime))
		})
	}
}

func TestValidateBatch_AcceptsSupportedFiles(t *testing.T) {
	v := New(0)
	err := v.ValidateBatch(models.ServiceCloudflare, []models.UploadCandidate{
		candidate("a.pdf", "application/pdf", 10),
		candidate("b.png", "", 10),
		candidate("c.xlsx", "application/octet-stream", 10),
	})
	assert.NoError(t, err)
}

func TestValidateBatch_RejectsWholeBatchNamingEveryFile(t *testing.T) {
	v := New(0)
	err := v.ValidateBatch(models.ServiceCloudflare, []models.UploadCandidate{
		candidate("one.pdf", "application/pdf", 1),
		candidate("two.exe", "application/x-msdownload", 1),
		candidate("three.pdf", "application/pdf", 1),
		candidate("four.txt", "text/plain", 1),
	})

	var batchErr *BatchError
	require.True(t, errors.As(err, &batchErr))
	assert.Equal(t, []string{"two.exe", "four.txt"}, batchErr.Names())
	assert.Equal(t, ReasonUnsupported, batchErr.Rejected[0].Reason)
	assert.Contains(t, err.Error(), "two.exe")
	assert.Contains(t, err.Error(), "four.txt")
}

func TestValidateBatch_SecondarySizeCeiling(t *testing.T) {
	v := New(0)
	tests := []struct {
		name    string
		size    int64
		wantErr bool
	}{
		{"just under", DefaultMaxSecondarySize - 1, false},
		{"exactly at ceiling", DefaultMaxSecondarySize, true},
		{"over", DefaultMaxSecondarySize + 1, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.ValidateBatch(models.ServiceMistral, []models.UploadCandidate{candidate("scan.pdf", "application/pdf", tt.size)})
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			var batchErr *BatchError
			require.True(t, errors.As(err, &batchErr))
			assert.Equal(t, ReasonTooLarge, batchErr.Rejected[0].Reason)
		})
	}

	t.Run("primary has no ceiling", func(t *testing.T) {
		err := v.ValidateBatch(models.ServiceCloudflare, []models.UploadCandidate{candidate("big.pdf", "application/pdf", 10*DefaultMaxSecondarySize)})
		assert.NoError(t, err)
	})
}

func TestValidateBatch_Empty(t *testing.T) {
	assert.ErrorIs(t, New(0).ValidateBatch(models.ServiceCloudflare, nil), ErrEmptyBatch)
}

func TestValidator_AllowList(t *testing.T) {
	v := New(1 << 20)
	list := v.AllowList(models.ServiceMistral)
	assert.Equal(t, int64(1<<20), list.MaxSize)
	assert.Contains(t, list.Extensions, ".pptx")

	// Returned slices are copies.
	list.Extensions[0] = ".mutated"
	assert.NotContains(t, AllowListFor(models.ServiceMistral).Extensions, ".mutated")

	assert.Zero(t, v.AllowList(models.ServiceCloudflare).MaxSize)
}
