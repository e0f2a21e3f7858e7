package service

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"sitegate/internal/entity"
	"sitegate/internal/storage"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
)

const (
	ExportFormatCSV  = "csv"
	ExportFormatJSON = "json"

	exportTimeLayout = "2006-01-02 15:04:05"
	exportFilePrefix = "email-restriction-users"
)

// importRow 导入文件中的一行
type importRow struct {
	Line     int
	Name     string
	Email    string
	Password string
}

// Import 从 CSV 或 JSON 文件导入用户，逐行调用 AddUser，失败的行记录原因后跳过
func (s *UserService) Import(ctx context.Context, filename string, r io.Reader) (*entity.ImportReport, error) {
	var (
		rows []importRow
		err  error
	)
	switch strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), ".")) {
	case "csv":
		rows, err = parseCSVRows(r)
	case "json":
		rows, err = parseJSONRows(r)
	default:
		return nil, userError(ErrUnsupportedFormat, "Only CSV and JSON files are supported.")
	}
	if err != nil {
		return nil, err
	}

	report := &entity.ImportReport{}
	for _, row := range rows {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		user, generated, err := s.AddUser(ctx, entity.UserCreateRequest{
			Name:     row.Name,
			Email:    row.Email,
			Password: row.Password,
		})
		if err != nil {
			var userErr *UserError
			if !errors.As(err, &userErr) {
				return report, err
			}
			report.Skipped++
			report.Errors = append(report.Errors, entity.ImportRowError{Row: row.Line, Email: row.Email, Message: userErr.Message})
			logImportSkip(row.Line, row.Email, err)
			continue
		}
		report.Added++
		if generated != "" {
			report.Credentials = append(report.Credentials, entity.ImportCredential{Email: user.Email, GeneratedPassword: generated})
		}
	}

	logrus.WithFields(logrus.Fields{
		"file":    filename,
		"added":   report.Added,
		"skipped": report.Skipped,
	}).Info("users imported")
	return report, nil
}

// parseCSVRows 支持 name,email[,password]，可选表头；单列行视为仅邮箱
func parseCSVRows(r io.Reader) ([]importRow, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	columns := map[string]int{"name": 0, "email": 1, "password": 2}
	var rows []importRow
	line := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, userError(ErrUnsupportedFormat, "Invalid CSV file: %v", err)
		}
		if isBlankRecord(record) {
			continue
		}
		if line == 1 {
			if header, ok := csvHeader(record); ok {
				columns = header
				continue
			}
		}

		var row importRow
		if len(record) == 1 {
			row.Email = strings.TrimSpace(record[0])
			row.Name = localPart(row.Email)
		} else {
			row.Name = csvField(record, columns["name"])
			row.Email = csvField(record, columns["email"])
			row.Password = csvField(record, columns["password"])
			if row.Name == "" {
				row.Name = localPart(row.Email)
			}
		}
		row.Line = line
		rows = append(rows, row)
	}
	return rows, nil
}

func csvHeader(record []string) (map[string]int, bool) {
	columns := map[string]int{"name": -1, "email": -1, "password": -1}
	found := false
	for i, cell := range record {
		key := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(cell, "\ufeff")))
		if _, ok := columns[key]; ok {
			columns[key] = i
			found = true
		}
	}
	if !found || columns["email"] < 0 {
		return nil, false
	}
	return columns, true
}

func csvField(record []string, idx int) string {
	if idx < 0 || idx >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[idx])
}

func isBlankRecord(record []string) bool {
	for _, cell := range record {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

// parseJSONRows 支持字符串数组或 {name,email,password} 对象数组
func parseJSONRows(r io.Reader) ([]importRow, error) {
	var items []json.RawMessage
	if err := json.NewDecoder(r).Decode(&items); err != nil {
		return nil, userError(ErrUnsupportedFormat, "Invalid JSON file: %v", err)
	}

	rows := make([]importRow, 0, len(items))
	for i, raw := range items {
		row := importRow{Line: i + 1}
		var email string
		if err := json.Unmarshal(raw, &email); err == nil {
			row.Email = strings.TrimSpace(email)
			row.Name = localPart(row.Email)
			rows = append(rows, row)
			continue
		}
		var obj struct {
			Name     string `json:"name"`
			Email    string `json:"email"`
			Password string `json:"password"`
		}
		if err := json.Unmarshal(raw, &obj); err != nil {
			rows = append(rows, row)
			continue
		}
		row.Email = strings.TrimSpace(obj.Email)
		row.Name = strings.TrimSpace(obj.Name)
		if row.Name == "" {
			row.Name = localPart(row.Email)
		}
		row.Password = obj.Password
		rows = append(rows, row)
	}
	return rows, nil
}

func localPart(email string) string {
	if at := strings.LastIndex(email, "@"); at > 0 {
		return email[:at]
	}
	return email
}

type exportUser struct {
	ID        uint   `json:"id"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

// Export 导出全部用户（不含密码哈希），配置了归档存储时同时上传一份
func (s *UserService) Export(ctx context.Context, format string) (*entity.ExportFile, error) {
	format = strings.ToLower(strings.TrimSpace(format))
	if format == "" {
		format = ExportFormatCSV
	}
	if format != ExportFormatCSV && format != ExportFormatJSON {
		return nil, userError(ErrUnsupportedFormat, "Unsupported export format: %s", format)
	}

	users, err := s.repo.ListAllUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	if len(users) == 0 {
		return nil, userError(ErrNothingToExport, "No users found to export.")
	}

	rows := make([]exportUser, 0, len(users))
	for _, u := range users {
		rows = append(rows, exportUser{
			ID:        u.ID,
			Name:      u.Name,
			Email:     u.Email,
			CreatedAt: u.CreatedAt.Format(exportTimeLayout),
			UpdatedAt: u.UpdatedAt.Format(exportTimeLayout),
		})
	}

	stamp := s.now().Format("2006-01-02-15-04-05")
	file := &entity.ExportFile{Filename: fmt.Sprintf("%s-%s.%s", exportFilePrefix, stamp, format)}
	switch format {
	case ExportFormatCSV:
		file.ContentType = "text/csv"
		file.Data, err = renderCSV(rows)
	case ExportFormatJSON:
		file.ContentType = "application/json"
		file.Data, err = json.MarshalIndent(rows, "", "  ")
	}
	if err != nil {
		return nil, fmt.Errorf("render export: %w", err)
	}

	if s.archive != nil {
		key, err := s.archive.Save(ctx, file.Data, storage.SaveOptions{
			Category:    storage.CategoryExports,
			BaseName:    strings.TrimSuffix(file.Filename, "."+format),
			Extension:   format,
			ContentType: file.ContentType,
		})
		if err != nil {
			// 归档失败不影响下载
			logrus.WithError(err).Warn("failed to archive user export")
		} else {
			file.ArchiveKey = key
		}
	}
	return file, nil
}

func renderCSV(rows []exportUser) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write([]string{"ID", "Name", "Email", "Created At", "Updated At"}); err != nil {
		return nil, err
	}
	for _, row := range rows {
		if err := w.Write([]string{strconv.FormatUint(uint64(row.ID), 10), row.Name, row.Email, row.CreatedAt, row.UpdatedAt}); err != nil {
			return nil, err
		}
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}
