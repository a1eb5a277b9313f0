package services

import (
	"bytes"
	"testing"
	"time"

	"docqa-platform/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestExportSessionExcel(t *testing.T) {
	ts := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)
	session := models.ConversationSession{
		ID:           "s1",
		DocumentID:   "doc",
		DocumentName: "report.pdf",
		Messages: []models.ConversationMessage{
			{Role: models.RoleUser, Content: "How did revenue change?", Timestamp: ts},
			{Role: models.RoleAssistant, Content: "Revenue grew 12% [1].", Timestamp: ts, Citations: []models.Citation{
				{ChunkID: "doc-chunk-0", PageNumber: 1, RelevanceScore: 1, Text: "Revenue grew 12% in Q1."},
			}},
		},
		CreatedAt:      ts,
		LastActivityAt: ts,
	}

	data, err := ExportSessionExcel(session)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{transcriptSheet, citationsSheet, sessionSheet}, f.GetSheetList())

	cell, _ := f.GetCellValue(transcriptSheet, "C2")
	assert.Equal(t, "How did revenue change?", cell)
	cell, _ = f.GetCellValue(transcriptSheet, "B3")
	assert.Equal(t, "assistant", cell)
	cell, _ = f.GetCellValue(transcriptSheet, "D3")
	assert.Equal(t, "2026-03-01 09:30:00", cell)

	cell, _ = f.GetCellValue(citationsSheet, "C2")
	assert.Equal(t, "doc-chunk-0", cell)
	cell, _ = f.GetCellValue(citationsSheet, "A2")
	assert.Equal(t, "2", cell)

	cell, _ = f.GetCellValue(sessionSheet, "B3")
	assert.Equal(t, "report.pdf", cell)
}
