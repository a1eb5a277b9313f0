package services

import (
	"bytes"
	"fmt"
	"time"

	"docqa-platform/internal/logger"
	"docqa-platform/models"

	"github.com/xuri/excelize/v2"
)

const (
	transcriptSheet = "Conversation"
	citationsSheet  = "Citations"
	sessionSheet    = "Session"
	exportTimestamp = "2006-01-02 15:04:05"
)

// ExcelContentType is the MIME type of ExportSessionExcel output.
const ExcelContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// SessionExport is the JSON form of an exported conversation.
type SessionExport struct {
	ExportDate time.Time                  `json:"export_date"`
	Session    models.ConversationSession `json:"session"`
}

// NewSessionExport wraps a session for JSON export.
func NewSessionExport(session models.ConversationSession) SessionExport {
	return SessionExport{ExportDate: time.Now().UTC(), Session: session}
}

// ExportSessionExcel renders a conversation as a workbook with a transcript
// sheet, a citations sheet and a session info sheet.
func ExportSessionExcel(session models.ConversationSession) ([]byte, error) {
	f := excelize.NewFile()
	defer func() {
		if err := f.Close(); err != nil {
			logger.Warn("Error closing Excel file", "error", err)
		}
	}()

	index, err := f.NewSheet(transcriptSheet)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}
	f.SetActiveSheet(index)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, fmt.Errorf("failed to remove default sheet: %w", err)
	}

	if err := writeRow(f, transcriptSheet, 1, []interface{}{"#", "Role", "Content", "Timestamp", "Citations"}); err != nil {
		return nil, err
	}
	for i, msg := range session.Messages {
		row := []interface{}{i + 1, string(msg.Role), msg.Content, msg.Timestamp.Format(exportTimestamp), len(msg.Citations)}
		if err := writeRow(f, transcriptSheet, i+2, row); err != nil {
			return nil, err
		}
	}
	if err := f.SetColWidth(transcriptSheet, "C", "C", 80); err != nil {
		return nil, err
	}

	if _, err := f.NewSheet(citationsSheet); err != nil {
		return nil, fmt.Errorf("failed to create citations sheet: %w", err)
	}
	if err := writeRow(f, citationsSheet, 1, []interface{}{"Message #", "Page", "Chunk ID", "Relevance", "Text"}); err != nil {
		return nil, err
	}
	row := 2
	for i, msg := range session.Messages {
		for _, c := range msg.Citations {
			if err := writeRow(f, citationsSheet, row, []interface{}{i + 1, c.PageNumber, c.ChunkID, c.RelevanceScore, c.Text}); err != nil {
				return nil, err
			}
			row++
		}
	}

	if _, err := f.NewSheet(sessionSheet); err != nil {
		return nil, fmt.Errorf("failed to create session sheet: %w", err)
	}
	info := [][]interface{}{
		{"Session ID", session.ID},
		{"Document ID", session.DocumentID},
		{"Document", session.DocumentName},
		{"Created At", session.CreatedAt.Format(exportTimestamp)},
		{"Last Activity", session.LastActivityAt.Format(exportTimestamp)},
		{"Messages", len(session.Messages)},
	}
	for i, r := range info {
		if err := writeRow(f, sessionSheet, i+1, r); err != nil {
			return nil, err
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("failed to write Excel file: %w", err)
	}
	return buf.Bytes(), nil
}

func writeRow(f *excelize.File, sheet string, row int, values []interface{}) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	return f.SetSheetRow(sheet, cell, &values)
}
