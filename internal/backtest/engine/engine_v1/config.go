package engine

import (
	"encoding/json"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/invopop/jsonschema"

	"github.com/khquant-lab/khquant/internal/types"
	"github.com/khquant-lab/khquant/pkg/errors"
)

// MarketCallbackConfig controls the pre and post market hooks.
type MarketCallbackConfig struct {
	PreMarketEnabled  bool   `yaml:"pre_market_enabled" json:"pre_market_enabled" jsonschema:"title=Pre-market Enabled"`
	PreMarketTime     string `yaml:"pre_market_time" json:"pre_market_time" jsonschema:"title=Pre-market Time,default=08:30:00" validate:"omitempty,clock"`
	PostMarketEnabled bool   `yaml:"post_market_enabled" json:"post_market_enabled" jsonschema:"title=Post-market Enabled"`
	PostMarketTime    string `yaml:"post_market_time" json:"post_market_time" jsonschema:"title=Post-market Time,default=15:30:00" validate:"omitempty,clock"`
}

// FeeConfig overrides the default fee schedule.
type FeeConfig struct {
	CommissionRate float64 `yaml:"commission_rate" json:"commission_rate" jsonschema:"minimum=0"`
	MinCommission  float64 `yaml:"min_commission" json:"min_commission" jsonschema:"minimum=0"`
	StampTaxRate   float64 `yaml:"stamp_tax_rate" json:"stamp_tax_rate" jsonschema:"minimum=0"`
	TransferRate   float64 `yaml:"transfer_rate" json:"transfer_rate" jsonschema:"minimum=0"`
	FlowFee        float64 `yaml:"flow_fee" json:"flow_fee" jsonschema:"minimum=0"`
}

// EngineV1Config is the full run configuration.
type EngineV1Config struct {
	StartTime   string   `yaml:"start_time" json:"start_time" jsonschema:"title=Start Date,description=Backtest start date as YYYYMMDD" validate:"required,len=8,numeric"`
	EndTime     string   `yaml:"end_time" json:"end_time" jsonschema:"title=End Date,description=Backtest end date as YYYYMMDD" validate:"required,len=8,numeric"`
	InitCapital float64  `yaml:"init_capital" json:"init_capital" jsonschema:"title=Initial Capital,minimum=0" validate:"gt=0"`
	Benchmark   string   `yaml:"benchmark" json:"benchmark" jsonschema:"title=Benchmark Index Code"`
	StockList   []string `yaml:"stock_list" json:"stock_list" jsonschema:"title=Instrument Codes" validate:"required,min=1,dive,required"`

	TriggerType string   `yaml:"trigger_type" json:"trigger_type" jsonschema:"title=Trigger Type,enum=tick,enum=1m,enum=5m,enum=1d,enum=custom" validate:"required,oneof=tick 1m 5m 1d custom"`
	CustomTimes []string `yaml:"custom_times" json:"custom_times" jsonschema:"title=Custom Trigger Times,description=HH:MM:SS offsets for the custom trigger" validate:"omitempty,dive,clock"`

	KlinePeriod  types.Period `yaml:"kline_period" json:"kline_period" jsonschema:"title=Data Granularity,enum=tick,enum=1m,enum=5m,enum=1d" validate:"required,oneof=tick 1m 5m 1d"`
	DividendType string       `yaml:"dividend_type" json:"dividend_type" jsonschema:"title=Dividend Adjustment,default=none"`
	FillData     bool         `yaml:"fill_data" json:"fill_data" jsonschema:"title=Fill Data Gaps"`

	MinVolume           int64 `yaml:"min_volume" json:"min_volume" jsonschema:"title=Lot Size,default=100" validate:"gt=0"`
	T0                  bool  `yaml:"t0" json:"t0" jsonschema:"title=T+0 Settlement"`
	AllowPeriodMismatch bool  `yaml:"allow_period_mismatch" json:"allow_period_mismatch" jsonschema:"title=Allow Period Mismatch"`
	DecimalPrecision    int   `yaml:"decimal_precision" json:"decimal_precision" jsonschema:"title=Price Decimal Precision,default=2" validate:"gte=0,lte=6"`

	MarketCallback MarketCallbackConfig `yaml:"market_callback" json:"market_callback"`
	Fees           FeeConfig            `yaml:"fees" json:"fees"`

	StrategyFile  string `yaml:"strategy_file" json:"strategy_file" jsonschema:"title=Strategy File,description=Recorded in the run artifacts"`
	ResultsFolder string `yaml:"results_folder" json:"results_folder" jsonschema:"title=Results Folder,default=backtest_results"`
}

var configValidator = newConfigValidator()

func newConfigValidator() *validator.Validate {
	v := validator.New()
	// HH:MM:SS
	_ = v.RegisterValidation("clock", func(fl validator.FieldLevel) bool {
		_, err := parseClock(fl.Field().String())
		return err == nil
	})
	return v
}

// DefaultConfig returns a config with every optional knob at its default.
func DefaultConfig() EngineV1Config {
	return EngineV1Config{
		TriggerType:  string(types.PeriodTick),
		KlinePeriod:  types.PeriodTick,
		DividendType: "none",
		MinVolume:    100,
		MarketCallback: MarketCallbackConfig{
			PreMarketTime:  "08:30:00",
			PostMarketTime: "15:30:00",
		},
		Fees: FeeConfig{
			CommissionRate: 0.0003,
			MinCommission:  5,
			StampTaxRate:   0.001,
			TransferRate:   0.00001,
		},
		DecimalPrecision: 2,
		ResultsFolder:    "backtest_results",
	}
}

// UnmarshalYAML decodes on top of the defaults so omitted fields keep them.
func (c *EngineV1Config) UnmarshalYAML(unmarshal func(interface{}) error) error {
	type rawConfig EngineV1Config

	raw := rawConfig(DefaultConfig())
	if err := unmarshal(&raw); err != nil {
		return err
	}

	*c = EngineV1Config(raw)

	return nil
}

// Validate checks the declarative constraints plus the cross-field rules
// yaml tags cannot express.
func (c *EngineV1Config) Validate() error {
	if err := configValidator.Struct(c); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidConfiguration, "invalid engine configuration", err)
	}
	if c.StartTime > c.EndTime {
		return errors.Newf(errors.ErrCodeInvalidConfiguration, "start_time %s is after end_time %s", c.StartTime, c.EndTime)
	}
	if c.TriggerType == "custom" && len(c.CustomTimes) == 0 {
		return errors.New(errors.ErrCodeInvalidConfiguration, "custom trigger requires at least one entry in custom_times")
	}
	return nil
}

// GenerateSchema builds the JSON schema for the engine configuration.
func (c *EngineV1Config) GenerateSchema() *jsonschema.Schema {
	reflector := jsonschema.Reflector{
		RequiredFromJSONSchemaTags: true,
		ExpandedStruct:             true,
		AllowAdditionalProperties:  false,
		Mapper: func(t reflect.Type) *jsonschema.Schema {
			if strings.Contains(t.String(), "types.Period") {
				return &jsonschema.Schema{
					Type: "string",
					Enum: []any{"tick", "1m", "5m", "1d"},
				}
			}
			return nil
		},
	}

	schema := reflector.Reflect(c)
	schema.Title = "backtest-engine-v1-config"
	schema.Description = "Configuration schema for the replay engine"
	schema.Version = "http://json-schema.org/draft-07/schema#"

	return schema
}

// GenerateSchemaJSON renders the schema as indented JSON.
func (c *EngineV1Config) GenerateSchemaJSON() (string, error) {
	schemaBytes, err := json.MarshalIndent(c.GenerateSchema(), "", "  ")
	if err != nil {
		return "", err
	}
	return string(schemaBytes), nil
}
