package catalog

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// ParseForecast reads an order-book CSV. The header row is required and
// matched case-insensitively: Customer, Job, and Service are mandatory;
// Stage (or "Stage Completed") and Qty are optional. Unknown columns are
// ignored so exports from spreadsheets round-trip.
func ParseForecast(r io.Reader) ([]Order, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, errors.New("forecast: empty file")
	}
	if err != nil {
		return nil, fmt.Errorf("forecast header: %w", err)
	}

	cols := make(map[string]int, len(header))
	for i, h := range header {
		cols[normalizeHeader(h)] = i
	}
	customer, okC := cols["customer"]
	job, okJ := cols["job"]
	service, okS := cols["service"]
	if !okC || !okJ || !okS {
		return nil, fmt.Errorf("forecast: header needs Customer, Job, and Service, got %v", header)
	}
	stage, hasStage := cols["stage completed"]
	if !hasStage {
		stage, hasStage = cols["stage"]
	}
	qty, hasQty := cols["qty"]
	if !hasQty {
		qty, hasQty = cols["quantity"]
	}

	var orders []Order
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("forecast row %d: %w", line, err)
		}
		o := Order{
			Customer:       field(rec, customer),
			Job:            field(rec, job),
			Service:        field(rec, service),
			StageCompleted: StageNotStarted,
		}
		if o.Customer == "" && o.Job == "" && o.Service == "" {
			continue
		}
		if o.Customer == "" || o.Job == "" || o.Service == "" {
			return nil, fmt.Errorf("forecast row %d: customer, job, and service are required", line)
		}
		if hasStage {
			if v := field(rec, stage); v != "" {
				o.StageCompleted = v
			}
		}
		if hasQty {
			if v := field(rec, qty); v != "" {
				n, err := strconv.Atoi(v)
				if err != nil || n < 0 {
					return nil, fmt.Errorf("forecast row %d: bad qty %q", line, v)
				}
				o.Qty = n
			}
		}
		orders = append(orders, o)
	}
	return orders, nil
}

func normalizeHeader(h string) string {
	return strings.ToLower(strings.Join(strings.Fields(h), " "))
}

func field(rec []string, i int) string {
	if i < 0 || i >= len(rec) {
		return ""
	}
	return strings.TrimSpace(rec[i])
}
