package audit

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"shala/internal/model"
)

func TestExportRegistrations(t *testing.T) {
	regs := []model.Registration{
		{
			UserID:      42,
			Username:    "yogi",
			DisplayName: "Анна",
			LessonDate:  "2026-09-01",
			Slot:        model.SlotMorning,
			CreatedAt:   time.Date(2026, 8, 31, 12, 30, 0, 0, time.UTC),
		},
		{
			UserID:      43,
			Username:    "om",
			DisplayName: "Борис",
			LessonDate:  "2026-09-01",
			Slot:        model.SlotEvening,
			CreatedAt:   time.Date(2026, 8, 31, 13, 0, 0, 0, time.UTC),
		},
	}

	data, err := ExportRegistrations(regs)
	require.NoError(t, err)
	require.NotEmpty(t, data)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("Записи")
	require.NoError(t, err)
	require.Len(t, rows, 3, "header plus two rows")
	assert.Equal(t, "Дата", rows[0][0])
	assert.Equal(t, "2026-09-01", rows[1][0])
	assert.Equal(t, "Утро", rows[1][1])
	assert.Equal(t, "Анна", rows[1][2])
	assert.Equal(t, "Вечер", rows[2][1])
}

func TestExportRegistrationsEmpty(t *testing.T) {
	data, err := ExportRegistrations(nil)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("Записи")
	require.NoError(t, err)
	require.Len(t, rows, 1, "header only")
}
