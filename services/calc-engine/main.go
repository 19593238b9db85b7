// Command calc-engine is a stateless calculator: a JSON payload in, JSON
// out. Modes:
//
//	calculate  settle companies from course sales and campaign costs
//	rows       settle companies from statement rows
//	check      cross-validate payouts against confirmed amounts
//
// The payload is read from -data, or from stdin when -data is empty.
package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/duneshique/sharex-settlement/pkg/core/apportion"
	"github.com/duneshique/sharex-settlement/pkg/core/classify"
	"github.com/duneshique/sharex-settlement/pkg/core/period"
	"github.com/duneshique/sharex-settlement/pkg/core/utils"
	"github.com/duneshique/sharex-settlement/pkg/core/validate"
	"github.com/duneshique/sharex-settlement/pkg/models"
)

// SettlePayload is the input of the calculate and rows modes.
type SettlePayload struct {
	Period        string                       `json:"period" validate:"required"`
	Companies     []models.Company             `json:"companies" validate:"required,dive"`
	Courses       []models.CourseCatalogEntry  `json:"courses" validate:"dive"`
	Sales         []models.CourseSales         `json:"course_sales"`
	Costs         []models.CampaignCost        `json:"campaign_costs"`
	Rows          []models.CourseSettlementRow `json:"settlement_rows"`
	ExchangeRates map[string]float64           `json:"exchange_rates"`
	Rules         []classify.Rule              `json:"rules" validate:"dive"`
	Options       apportion.Options            `json:"options"`
}

// CheckPayload is the input of the check mode.
type CheckPayload struct {
	Actual   map[string]float64 `json:"actual" validate:"required"`
	Expected map[string]float64 `json:"expected" validate:"required"`
	// Tolerance defaults to validate.DefaultTolerance; 0 demands an exact match.
	Tolerance *float64 `json:"tolerance" validate:"omitempty,gte=0"`
}

// CheckResponse is the output of the check mode.
type CheckResponse struct {
	Passed  bool                      `json:"passed"`
	Results []models.ValidationResult `json:"results"`
}

func main() {
	mode := flag.String("mode", "calculate", "Mode: calculate, rows or check")
	dataStr := flag.String("data", "", "JSON data payload (default: stdin)")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

	data := *dataStr
	if data == "" {
		raw, err := io.ReadAll(os.Stdin)
		if err != nil {
			fail(err)
		}
		data = string(raw)
	}
	if data == "" {
		fail(errors.New("no data provided"))
	}

	out, err := handle(*mode, data, logger)
	if err != nil {
		fail(err)
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		fail(err)
	}
}

func fail(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}

func handle(mode, data string, logger *slog.Logger) (any, error) {
	switch mode {
	case "check":
		var p CheckPayload
		if err := decode(data, &p); err != nil {
			return nil, err
		}
		tolerance := validate.DefaultTolerance
		if p.Tolerance != nil {
			tolerance = *p.Tolerance
		}
		results := validate.CrossValidate(p.Actual, p.Expected, tolerance)
		return CheckResponse{Passed: validate.AllPassed(results), Results: results}, nil

	case "calculate", "rows":
		var p SettlePayload
		if err := decode(data, &p); err != nil {
			return nil, err
		}
		return settle(mode, p, logger)
	}
	return nil, fmt.Errorf("unknown mode: %s", mode)
}

func settle(mode string, p SettlePayload, logger *slog.Logger) (*apportion.Export, error) {
	opts := []apportion.Option{
		apportion.WithLogger(logger),
		apportion.WithRates(p.ExchangeRates),
	}
	if len(p.Rules) > 0 {
		opts = append(opts, apportion.WithClassifier(classify.New(p.Rules)))
	}
	engine := apportion.New(p.Companies, p.Courses, opts...)

	var res *apportion.Result
	if mode == "rows" {
		res = engine.SettleRows(p.Period, p.Rows)
	} else {
		months, err := period.Months(p.Period)
		if err != nil {
			return nil, fmt.Errorf("period %q: %w", p.Period, err)
		}
		engine.AddCourseSales(p.Sales...)
		engine.AddCampaignCost(p.Costs...)
		if res, err = engine.Calculate(p.Period, months, p.Options); err != nil {
			return nil, err
		}
	}
	for _, w := range res.Warnings {
		logger.Warn("settlement warning", "error", w)
	}
	return &apportion.Export{
		Period:      res.Period,
		Settlements: res.Settlements,
		Summary:     apportion.Summarize(res),
	}, nil
}

func decode(data string, v any) error {
	if _, err := utils.SmartParse(data, v); err != nil {
		return fmt.Errorf("invalid payload: %w", err)
	}
	return utils.ValidateStruct(v)
}
