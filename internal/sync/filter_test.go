package sync

import (
	"path"
	"testing"
	"time"

	"github.com/chmdznr/aurora-log-sync/pkg/models"
)

func testKeyFor(name string) string {
	return path.Join("aurora-logs/test/2024-03-10", path.Base(name))
}

func names(files []models.LogFile) []string {
	var out []string
	for _, f := range files {
		out = append(out, f.Name)
	}
	return out
}

func TestSelectCutoff(t *testing.T) {
	files := []models.LogFile{
		{Name: "error-2024-03-01.log", LastWritten: 1},
		{Name: "error-2024-03-03.log", LastWritten: 2},
		{Name: "error-2024-03-04.log", LastWritten: 3},
	}

	got := Select(files, SelectParams{
		State:      &models.InstanceState{},
		CutoffDays: 7,
		Today:      today,
		KeyFor:     testKeyFor,
	})

	want := []string{"error-2024-03-03.log", "error-2024-03-04.log"}
	gotNames := names(got)
	if len(gotNames) != len(want) {
		t.Fatalf("admitted %v; want %v", gotNames, want)
	}
	for i := range want {
		if gotNames[i] != want[i] {
			t.Errorf("admitted[%d] = %q; want %q (boundary day is inclusive)", i, gotNames[i], want[i])
		}
	}
}

func TestSelectRunMarker(t *testing.T) {
	markerAt := time.Date(2024, 3, 9, 23, 0, 0, 0, time.UTC)
	before := markerAt.Add(-time.Hour).UnixMilli()
	after := markerAt.Add(time.Hour).UnixMilli()

	tests := []struct {
		name     string
		file     models.LogFile
		admitted bool
	}{
		{
			name:     "rotated file untouched since last run",
			file:     models.LogFile{Name: "error-2024-03-08.log", LastWritten: before},
			admitted: false,
		},
		{
			name:     "rotated file written after last run",
			file:     models.LogFile{Name: "error-2024-03-08.log", LastWritten: after},
			admitted: true,
		},
		{
			name:     "rotated file written exactly at last run",
			file:     models.LogFile{Name: "error-2024-03-08.log", LastWritten: markerAt.UnixMilli()},
			admitted: false,
		},
		{
			name:     "undated file ignores the marker",
			file:     models.LogFile{Name: "error-running.log", LastWritten: before},
			admitted: true,
		},
		{
			name:     "today's file ignores the marker",
			file:     models.LogFile{Name: "error-2024-03-10.log", LastWritten: before},
			admitted: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Select([]models.LogFile{tt.file}, SelectParams{
				State:      &models.InstanceState{},
				Marker:     models.RunMarker{LastUpdate: markerAt},
				CutoffDays: 7,
				Today:      today,
				KeyFor:     testKeyFor,
			})
			if admitted := len(got) == 1; admitted != tt.admitted {
				t.Errorf("admitted = %v; want %v", admitted, tt.admitted)
			}
		})
	}
}

func TestSelectPriorTransfer(t *testing.T) {
	const lastWritten = 1709999999000

	state := &models.InstanceState{Files: []models.RecordEntry{
		{Key: testKeyFor("audit-2024-03-05.log"), LastWritten: lastWritten},
		{Key: testKeyFor("error-running.log"), LastWritten: lastWritten},
	}}

	tests := []struct {
		name     string
		file     models.LogFile
		admitted bool
	}{
		{
			name:     "rotated file with identical prior transfer",
			file:     models.LogFile{Name: "audit-2024-03-05.log", LastWritten: lastWritten},
			admitted: false,
		},
		{
			name:     "rotated file grown since prior transfer",
			file:     models.LogFile{Name: "audit-2024-03-05.log", LastWritten: lastWritten + 5000},
			admitted: true,
		},
		{
			name:     "active file always re-admitted",
			file:     models.LogFile{Name: "error-running.log", LastWritten: lastWritten},
			admitted: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Select([]models.LogFile{tt.file}, SelectParams{
				State:      state,
				CutoffDays: 7,
				Today:      today,
				KeyFor:     testKeyFor,
			})
			if admitted := len(got) == 1; admitted != tt.admitted {
				t.Errorf("admitted = %v; want %v", admitted, tt.admitted)
			}
		})
	}
}

func TestSelectPreservesOrderAndInputs(t *testing.T) {
	files := []models.LogFile{
		{Name: "error-running.log", LastWritten: 10},
		{Name: "error-2024-03-09.log", LastWritten: 20},
		{Name: "slowquery-running.log", LastWritten: 30},
	}
	state := &models.InstanceState{Files: []models.RecordEntry{
		{Key: testKeyFor("error-2024-03-09.log"), LastWritten: 20},
	}}

	got := Select(files, SelectParams{
		State:      state,
		CutoffDays: 7,
		Today:      today,
		KeyFor:     testKeyFor,
	})

	want := []string{"error-running.log", "slowquery-running.log"}
	gotNames := names(got)
	if len(gotNames) != len(want) || gotNames[0] != want[0] || gotNames[1] != want[1] {
		t.Errorf("admitted %v; want %v in listing order", gotNames, want)
	}

	if len(files) != 3 || len(state.Files) != 1 {
		t.Error("Select must not mutate its inputs")
	}
}
