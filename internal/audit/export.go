// Package audit builds Excel exports of class registrations for admins.
package audit

import (
	"bytes"
	"fmt"

	"github.com/xuri/excelize/v2"

	"shala/internal/model"
)

var exportColumns = []string{"Дата", "Класс", "Имя", "Username", "User ID", "Записан"}

// ExportRegistrations renders registrations into an xlsx workbook, one sheet,
// newest rows as stored. Returns the serialized file.
func ExportRegistrations(regs []model.Registration) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	const sheet = "Записи"
	f.SetSheetName("Sheet1", sheet)

	for i, col := range exportColumns {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return nil, err
		}
		if err := f.SetCellValue(sheet, cell, col); err != nil {
			return nil, err
		}
	}
	if style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}}); err == nil {
		start, _ := excelize.CoordinatesToCellName(1, 1)
		end, _ := excelize.CoordinatesToCellName(len(exportColumns), 1)
		_ = f.SetCellStyle(sheet, start, end, style)
	}

	for i, r := range regs {
		row := []any{
			r.LessonDate,
			slotLabel(r.Slot),
			r.DisplayName,
			r.Username,
			r.UserID,
			r.CreatedAt.Format("2006-01-02 15:04"),
		}
		for j, val := range row {
			cell, err := excelize.CoordinatesToCellName(j+1, i+2)
			if err != nil {
				return nil, err
			}
			if err := f.SetCellValue(sheet, cell, val); err != nil {
				return nil, err
			}
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("serialize registrations export: %w", err)
	}
	return buf.Bytes(), nil
}

func slotLabel(s model.SlotKind) string {
	switch s {
	case model.SlotMorning:
		return "Утро"
	case model.SlotEvening:
		return "Вечер"
	}
	return string(s)
}
