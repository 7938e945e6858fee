package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/rs/zerolog"
	"github.com/xuri/excelize/v2"

	"github.com/Mr-Midnight-101/Department-Management-system-sub000/internal/apperr"
	"github.com/Mr-Midnight-101/Department-Management-system-sub000/internal/repository"
	"github.com/Mr-Midnight-101/Department-Management-system-sub000/internal/resource"
)

type ImportSkip struct {
	Row     int    `json:"row"`
	Message string `json:"message"`
}

type ImportReport struct {
	Created int          `json:"created"`
	Skipped []ImportSkip `json:"skipped"`
}

// ImportService creates students from the first sheet of an xlsx workbook.
type ImportService struct {
	students *resource.Engine
	store    repository.Store
	log      zerolog.Logger
}

func NewImportService(students *resource.Engine, store repository.Store, log zerolog.Logger) *ImportService {
	return &ImportService{students: students, store: store, log: log}
}

// ImportStudents reads a header row naming student fields, then creates one
// student per row. Rows that fail validation are reported and skipped.
func (s *ImportService) ImportStudents(ctx context.Context, r io.Reader) (ImportReport, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return ImportReport{}, apperr.Validation("File must be an xlsx workbook")
	}
	defer func() {
		if err := f.Close(); err != nil {
			s.log.Warn().Err(err).Msg("close workbook failed")
		}
	}()

	sheetName := f.GetSheetName(0)
	if sheetName == "" {
		return ImportReport{}, apperr.Validation("Workbook does not contain any sheets")
	}
	rows, err := f.GetRows(sheetName)
	if err != nil {
		return ImportReport{}, apperr.Internal(fmt.Sprintf("failed to read sheet %s", sheetName), err)
	}
	if len(rows) < 2 {
		return ImportReport{}, apperr.Validation("Workbook has no student rows")
	}

	columns := s.headerColumns(rows[0])
	if len(columns) == 0 {
		return ImportReport{}, apperr.Validation("Header row does not name any student field")
	}

	report := ImportReport{Skipped: []ImportSkip{}}
	for i, row := range rows[1:] {
		rowNumber := i + 2
		input := map[string]any{}
		for col, field := range columns {
			if col < len(row) {
				if cell := strings.TrimSpace(row[col]); cell != "" {
					input[field] = cell
				}
			}
		}
		if len(input) == 0 {
			continue
		}
		if err := s.resolveCourse(ctx, input); err != nil {
			return report, err
		}

		if _, err := s.students.Create(ctx, input); err != nil {
			if apperr.KindOf(err) == apperr.KindInternal {
				return report, err
			}
			report.Skipped = append(report.Skipped, ImportSkip{Row: rowNumber, Message: err.Error()})
			continue
		}
		report.Created++
	}

	s.log.Info().Int("created", report.Created).Int("skipped", len(report.Skipped)).Msg("students imported")
	return report, nil
}

// headerColumns maps column index to field name, matching case-insensitively.
func (s *ImportService) headerColumns(header []string) map[int]string {
	columns := map[int]string{}
	for col, cell := range header {
		name := strings.ToLower(strings.TrimSpace(cell))
		for _, field := range s.students.Schema().Fields {
			if strings.ToLower(field.Name) == name {
				columns[col] = field.Name
			}
		}
	}
	return columns
}

// resolveCourse accepts a course code in place of a course id.
func (s *ImportService) resolveCourse(ctx context.Context, input map[string]any) error {
	value, ok := input["course"].(string)
	if !ok {
		return nil
	}
	if _, err := s.store.FindByID(ctx, resource.CollectionCourses, value); err == nil {
		return nil
	} else if !errors.Is(err, repository.ErrNotFound) {
		return apperr.Internal("failed to look up course", err)
	}

	course, err := s.store.FindOne(ctx, resource.CollectionCourses, repository.Match{"courseCode": strings.ToUpper(value)})
	switch {
	case err == nil:
		input["course"] = course.ID()
	case !errors.Is(err, repository.ErrNotFound):
		return apperr.Internal("failed to look up course", err)
	}
	return nil
}
