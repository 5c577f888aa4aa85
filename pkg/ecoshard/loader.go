// Package ecoshard loads eco-governance telemetry shards: comma-delimited
// files with a header row and one NeuroNode per line.
package ecoshard

import (
	"bufio"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/polisai/neurogov/pkg/domain"
)

// DefaultPath is where the report command looks for the shard.
const DefaultPath = "data/PhoenixNeurostackEcoGov2026v1.csv"

// minFields is the number of columns a row needs to become a NeuroNode.
const minFields = 11

// LoadResult carries the parsed records and how many rows were dropped.
type LoadResult struct {
	Nodes   []domain.NeuroNode
	Skipped int
}

// LoadFile opens path and parses it. Only a failure to open the file is
// returned as an error; malformed rows are skipped.
func LoadFile(ctx context.Context, path string, logger *slog.Logger) (LoadResult, error) {
	//nolint:gosec // Shard path is controlled by the operator
	f, err := os.Open(path)
	if err != nil {
		return LoadResult{}, domain.NewError(domain.ErrSourceUnavailable, domain.CodeSourceUnavailable,
			map[string]any{"path": path}, "unable to open %s: %v", path, err)
	}
	defer f.Close()

	return Load(ctx, f, logger)
}

// Load parses a shard from r. The first line is a header.
func Load(ctx context.Context, r io.Reader, logger *slog.Logger) (LoadResult, error) {
	if logger == nil {
		logger = slog.Default()
	}

	reader := csv.NewReader(bufio.NewReader(r))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.ReuseRecord = true

	var result LoadResult
	if _, err := reader.Read(); err != nil {
		if errors.Is(err, io.EOF) {
			return result, nil
		}
		return result, domain.NewError(domain.ErrSourceUnavailable, domain.CodeSourceUnavailable, nil, "read header: %v", err)
	}

	for {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		fields, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var parseErr *csv.ParseError
			if errors.As(err, &parseErr) {
				result.Skipped++
				logger.Debug("skipping unreadable shard row", "line", parseErr.Line, "error", err)
				continue
			}
			return result, fmt.Errorf("read shard: %w", err)
		}
		if isBlank(fields) {
			continue
		}
		line, _ := reader.FieldPos(0)

		node, err := parseNode(fields)
		if err != nil {
			result.Skipped++
			logger.Debug("skipping malformed shard row", "line", line, "error", err)
			continue
		}
		result.Nodes = append(result.Nodes, node)
	}

	return result, nil
}

func isBlank(fields []string) bool {
	return len(fields) == 1 && strings.TrimSpace(fields[0]) == ""
}

func parseNode(fields []string) (domain.NeuroNode, error) {
	if len(fields) < minFields {
		return domain.NeuroNode{}, fmt.Errorf("%w: %d fields, need %d", domain.ErrMalformedRecord, len(fields), minFields)
	}

	var (
		node domain.NeuroNode
		err  error
	)
	node.NodeID = fields[0]
	node.Layer = fields[1]
	node.Region = fields[2]
	if node.Latitude, err = parseFloat("latitude", fields[3]); err != nil {
		return domain.NeuroNode{}, err
	}
	if node.Longitude, err = parseFloat("longitude", fields[4]); err != nil {
		return domain.NeuroNode{}, err
	}
	node.Parameter = fields[5]
	node.Unit = fields[6]
	if node.Value, err = parseFloat("value", fields[7]); err != nil {
		return domain.NeuroNode{}, err
	}
	node.Window = fields[8]
	if node.EcoImpactScore, err = parseFloat("eco_impact_score", fields[9]); err != nil {
		return domain.NeuroNode{}, err
	}
	node.Notes = fields[10]
	return node, nil
}

func parseFloat(column, raw string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return 0, fmt.Errorf("%w: column %s: %q is not numeric", domain.ErrMalformedRecord, column, raw)
	}
	return v, nil
}
