package telemetry

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"scout-gateway/internal/models"
)

// CSV 列名（由识别程序写出）
const (
	ColName       = "Crop Name"
	ColCenter     = "Pixel Center X Y"
	ColLatitude   = "Latitude"
	ColLongitude  = "Longitude"
	ColConfidence = "Confidence"
	ColTimestamp  = "Timestamp"
	ColYaw        = "Yaw"
)

type parsed struct {
	records map[string]models.TelemetryRecord
	order   []string
	skipped []error
}

// parseCSV 解析整个文件。单行问题记为 ErrParseSkip 并跳过；只有读取失败或表头缺失才返回错误
func parseCSV(r io.Reader) (*parsed, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("empty csv: missing header")
		}
		return nil, fmt.Errorf("failed to read csv header: %w", err)
	}

	cols := make(map[string]int, len(header))
	for i, h := range header {
		if i == 0 {
			h = strings.TrimPrefix(h, "\ufeff")
		}
		cols[strings.TrimSpace(h)] = i
	}

	out := &parsed{records: make(map[string]models.TelemetryRecord)}
	line := 1
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("failed to read csv line %d: %w", line, err)
		}

		rec, err := parseRow(cols, row)
		if err != nil {
			out.skipped = append(out.skipped, fmt.Errorf("line %d: %w", line, err))
			continue
		}
		if _, dup := out.records[rec.Name]; !dup {
			out.order = append(out.order, rec.Name)
		}
		// 同名行后者覆盖前者，位置保持第一次出现的位置
		out.records[rec.Name] = rec
	}
	return out, nil
}

func parseRow(cols map[string]int, row []string) (models.TelemetryRecord, error) {
	get := func(col string) string {
		i, ok := cols[col]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	rec := models.TelemetryRecord{
		Name:      get(ColName),
		Center:    get(ColCenter),
		Timestamp: get(ColTimestamp),
	}
	if rec.Name == "" {
		return rec, fmt.Errorf("%w: missing %q", models.ErrParseSkip, ColName)
	}

	var err error
	if rec.Latitude, err = parseOptionalFloat(get(ColLatitude), -90, 90); err != nil {
		return rec, fmt.Errorf("%w: %s %v", models.ErrParseSkip, ColLatitude, err)
	}
	if rec.Longitude, err = parseOptionalFloat(get(ColLongitude), -180, 180); err != nil {
		return rec, fmt.Errorf("%w: %s %v", models.ErrParseSkip, ColLongitude, err)
	}
	if rec.Confidence, err = parseOptionalFloat(get(ColConfidence), 0, 0); err != nil {
		return rec, fmt.Errorf("%w: %s %v", models.ErrParseSkip, ColConfidence, err)
	}
	if rec.Yaw, err = parseOptionalFloat(get(ColYaw), 0, 0); err != nil {
		return rec, fmt.Errorf("%w: %s %v", models.ErrParseSkip, ColYaw, err)
	}
	return rec, nil
}

// parseOptionalFloat 空串返回 nil；min == max 表示不校验范围。NaN 和 ±Inf 一律拒绝
func parseOptionalFloat(s string, min, max float64) (*float64, error) {
	if s == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, fmt.Errorf("%q is not a number", s)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil, fmt.Errorf("%q is not a finite number", s)
	}
	if min != max && (v < min || v > max) {
		return nil, fmt.Errorf("%v out of range [%v, %v]", v, min, max)
	}
	return &v, nil
}
