package request

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ndewijer/portfolio-rebalancer/internal/apperrors"
	"github.com/ndewijer/portfolio-rebalancer/internal/model"
)

// DateLayout is the format of every date query parameter.
const DateLayout = "2006-01-02"

// RebalanceQuery holds the parsed query of GET /api/rebalance.
type RebalanceQuery struct {
	Filter   model.RebalanceFilter
	AsOf     time.Time // zero means now
	TaxAware bool
}

// ParseRebalanceQuery extracts and validates rebalance parameters.
//
// Validation rules:
//   - group, account: comma-separated UUIDs (optional)
//   - as_of: YYYY-MM-DD (optional, defaults to now)
//   - tax_aware: boolean (optional, defaults to true)
func ParseRebalanceQuery(groupParam, accountParam, asOfParam, taxAwareParam string) (*RebalanceQuery, error) {
	q := &RebalanceQuery{TaxAware: true}

	var err error
	if q.Filter.GroupIDs, err = parseIDList("group", groupParam); err != nil {
		return nil, err
	}
	if q.Filter.AccountIDs, err = parseIDList("account", accountParam); err != nil {
		return nil, err
	}
	if q.AsOf, err = parseDate("as_of", asOfParam); err != nil {
		return nil, err
	}
	if taxAwareParam != "" {
		q.TaxAware, err = strconv.ParseBool(taxAwareParam)
		if err != nil {
			return nil, apperrors.NewInputError("tax_aware", "must be a boolean")
		}
	}

	return q, nil
}

// ParsePerformanceQuery extracts performance parameters into a request for userID.
// Lens and metric names are checked by the performance service.
//
// Validation rules:
//   - start_date, end_date: YYYY-MM-DD (optional), start not after end
//   - aggregate: boolean (optional, defaults to false)
func ParsePerformanceQuery(userID, startParam, endParam, lensParam, aggregateParam, metricParam, benchmarkParam string) (*model.PerformanceRequest, error) {
	start, err := parseDate("start_date", startParam)
	if err != nil {
		return nil, err
	}
	end, err := parseDate("end_date", endParam)
	if err != nil {
		return nil, err
	}
	if err := checkRange(start, end); err != nil {
		return nil, err
	}

	req := &model.PerformanceRequest{
		UserID:    userID,
		Start:     start,
		End:       end,
		Lens:      model.Lens(strings.ToLower(strings.TrimSpace(lensParam))),
		Metric:    model.ReturnMetric(strings.ToLower(strings.TrimSpace(metricParam))),
		Benchmark: strings.ToUpper(strings.TrimSpace(benchmarkParam)),
	}
	if aggregateParam != "" {
		req.Aggregate, err = strconv.ParseBool(aggregateParam)
		if err != nil {
			return nil, apperrors.NewInputError("aggregate", "must be a boolean")
		}
	}

	return req, nil
}

// ParseDateRange parses optional start_date and end_date parameters.
// A missing end defaults to today when defaultEnd is set.
func ParseDateRange(startParam, endParam string, defaultEnd bool) (time.Time, time.Time, error) {
	start, err := parseDate("start_date", startParam)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	end, err := parseDate("end_date", endParam)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	if end.IsZero() && defaultEnd {
		y, m, d := time.Now().UTC().Date()
		end = time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	}
	if err := checkRange(start, end); err != nil {
		return time.Time{}, time.Time{}, err
	}
	return start, end, nil
}

func parseDate(field, value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(DateLayout, value)
	if err != nil {
		return time.Time{}, apperrors.NewInputError(field, "must be a date in YYYY-MM-DD format")
	}
	return t, nil
}

func parseIDList(field, value string) ([]string, error) {
	if value == "" {
		return nil, nil
	}
	var ids []string
	for _, id := range strings.Split(value, ",") {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, err := uuid.Parse(id); err != nil {
			return nil, apperrors.NewInputError(field, "invalid UUID %q", id)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func checkRange(start, end time.Time) error {
	if !start.IsZero() && !end.IsZero() && start.After(end) {
		return fmt.Errorf("%w: start_date %s is after end_date %s", apperrors.ErrInvalidDateRange,
			start.Format(DateLayout), end.Format(DateLayout))
	}
	return nil
}
