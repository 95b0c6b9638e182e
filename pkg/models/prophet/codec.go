package prophet

import (
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/peter-kozarec/augur/pkg/utility"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

const codecVersion = 1

// MarshalBinary encodes the fitted model as a protobuf Struct. Floats are
// stored as doubles, so a decoded model predicts identically.
func (f *Fitted) MarshalBinary() ([]byte, error) {
	s, err := f.toStruct()
	if err != nil {
		return nil, err
	}
	return proto.MarshalOptions{Deterministic: true}.Marshal(s)
}

func (f *Fitted) MarshalJSON() ([]byte, error) {
	s, err := f.toStruct()
	if err != nil {
		return nil, err
	}
	return protojson.Marshal(s)
}

// DecodeBinary restores a model written by MarshalBinary. Options may attach
// a logger or collector to the restored configuration.
func DecodeBinary(data []byte, options ...Option) (*Fitted, error) {
	var s structpb.Struct
	if err := proto.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorruptModel, err)
	}
	return fromStruct(&s, options)
}

func DecodeJSON(data []byte, options ...Option) (*Fitted, error) {
	var s structpb.Struct
	if err := protojson.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorruptModel, err)
	}
	return fromStruct(&s, options)
}

func (f *Fitted) toStruct() (*structpb.Struct, error) {
	m := f.model

	seasonalities := make([]any, len(m.seasonalities))
	for i, s := range m.seasonalities {
		seasonalities[i] = map[string]any{
			"name":           s.Name,
			"period":         s.Period,
			"fourier_order":  s.FourierOrder,
			"prior_scale":    s.PriorScale,
			"mode":           s.Mode.String(),
			"condition_name": s.ConditionName,
		}
	}
	holidays := make([]any, len(m.holidays))
	for i, h := range m.holidays {
		holidays[i] = map[string]any{
			"name":         h.Name,
			"date":         formatTime(h.Date),
			"lower_window": h.LowerWindow,
			"upper_window": h.UpperWindow,
			"prior_scale":  h.PriorScale,
		}
	}
	regressors := make([]any, len(m.regressors))
	for i, r := range m.regressors {
		scale := f.regressorScales[r.Name]
		regressors[i] = map[string]any{
			"name":        r.Name,
			"prior_scale": r.PriorScale,
			"mode":        r.Mode.String(),
			"standardize": r.Standardize,
			"mu":          scale.Mu,
			"std":         scale.Std,
		}
	}

	d := f.diagnostics
	raw := map[string]any{
		"version": codecVersion,
		"id":      f.id.String(),
		"seed":    strconv.FormatInt(f.seed, 10),
		"model": map[string]any{
			"growth":                  m.growth.String(),
			"n_changepoints":          m.nChangepoints,
			"changepoint_range":       m.changepointRange,
			"changepoint_prior_scale": m.changepointPriorScale,
			"placement":               int(m.placement),
			"specified_changepoints":  m.specifiedChangepoints,
			"seasonality_mode":        m.seasonalityMode.String(),
			"seasonality_prior_scale": m.seasonalityPriorScale,
			"holidays_prior_scale":    m.holidaysPriorScale,
			"interval_width":          m.intervalWidth,
			"uncertainty_samples":     m.uncertaintySamples,
			"max_iterations":          m.maxIterations,
			"fit_timeout":             m.fitTimeout.String(),
			"seasonalities":           seasonalities,
			"holidays":                holidays,
			"regressors":              regressors,
		},
		"normalizer": map[string]any{
			"start":          formatTime(f.normalizer.Start),
			"t_scale":        f.normalizer.TScale,
			"y_scale":        f.normalizer.YScale,
			"logistic_floor": f.normalizer.LogisticFloor,
		},
		"changepoints":  timesToList(f.changepoints),
		"history_dates": timesToList(f.historyDates),
		"params": map[string]any{
			"k":         f.params.K,
			"m":         f.params.M,
			"deltas":    floatsToList(f.params.Deltas),
			"beta":      floatsToList(f.params.Beta),
			"sigma_obs": f.params.SigmaObs,
		},
		"diagnostics": map[string]any{
			"converged":        d.Converged,
			"stage":            d.Stage,
			"status":           d.Status,
			"iterations":       d.Iterations,
			"func_evaluations": d.FuncEvaluations,
			"log_posterior":    finiteOrZero(d.LogPosterior),
			"warning":          d.Warning,
			"elapsed":          d.Elapsed.String(),
			"rmse":             finiteOrZero(d.RMSE),
			"mae":              finiteOrZero(d.MAE),
			"mape":             finiteOrZero(d.MAPE),
		},
	}

	s, err := structpb.NewStruct(raw)
	if err != nil {
		return nil, fmt.Errorf("unable to encode model: %w", err)
	}
	return s, nil
}

func fromStruct(s *structpb.Struct, options []Option) (*Fitted, error) {
	r := reader{fields: s.AsMap()}

	if v := int(r.number("version")); v != codecVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrCorruptModel, v)
	}
	id, err := utility.ParseRunID(r.str("id"))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorruptModel, err)
	}
	seed, err := strconv.ParseInt(r.str("seed"), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: seed: %w", ErrCorruptModel, err)
	}

	mr := r.child("model")
	growth, err := ParseGrowth(mr.str("growth"))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorruptModel, err)
	}
	seasonalityMode, err := ParseMode(mr.str("seasonality_mode"))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorruptModel, err)
	}
	fitTimeout, err := time.ParseDuration(mr.str("fit_timeout"))
	if err != nil {
		return nil, fmt.Errorf("%w: fit timeout: %w", ErrCorruptModel, err)
	}

	model := &Model{
		growth:                growth,
		nChangepoints:         int(mr.number("n_changepoints")),
		changepointRange:      mr.number("changepoint_range"),
		changepointPriorScale: mr.number("changepoint_prior_scale"),
		placement:             Placement(int(mr.number("placement"))),
		specifiedChangepoints: mr.boolean("specified_changepoints"),
		seasonalityMode:       seasonalityMode,
		seasonalityPriorScale: mr.number("seasonality_prior_scale"),
		holidaysPriorScale:    mr.number("holidays_prior_scale"),
		yearly:                ToggleOff,
		weekly:                ToggleOff,
		daily:                 ToggleOff,
		intervalWidth:         mr.number("interval_width"),
		uncertaintySamples:    int(mr.number("uncertainty_samples")),
		maxIterations:         int(mr.number("max_iterations")),
		fitTimeout:            fitTimeout,
	}

	for _, item := range mr.list("seasonalities") {
		sr := reader{fields: asMap(item), err: mr.err}
		mode, err := ParseMode(sr.str("mode"))
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrCorruptModel, err)
		}
		model.seasonalities = append(model.seasonalities, Seasonality{
			Name:          sr.str("name"),
			Period:        sr.number("period"),
			FourierOrder:  int(sr.number("fourier_order")),
			PriorScale:    sr.number("prior_scale"),
			Mode:          mode,
			ConditionName: sr.str("condition_name"),
		})
		mr.err = sr.err
	}
	for _, item := range mr.list("holidays") {
		hr := reader{fields: asMap(item), err: mr.err}
		model.holidays = append(model.holidays, Holiday{
			Name:        hr.str("name"),
			Date:        hr.time("date"),
			LowerWindow: int(hr.number("lower_window")),
			UpperWindow: int(hr.number("upper_window")),
			PriorScale:  hr.number("prior_scale"),
		})
		mr.err = hr.err
	}
	scales := make(map[string]RegressorScale)
	for _, item := range mr.list("regressors") {
		rr := reader{fields: asMap(item), err: mr.err}
		mode, err := ParseMode(rr.str("mode"))
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrCorruptModel, err)
		}
		reg := Regressor{
			Name:        rr.str("name"),
			PriorScale:  rr.number("prior_scale"),
			Mode:        mode,
			Standardize: rr.boolean("standardize"),
		}
		model.regressors = append(model.regressors, reg)
		scales[reg.Name] = RegressorScale{Mu: rr.number("mu"), Std: rr.number("std")}
		mr.err = rr.err
	}

	nr := r.child("normalizer")
	normalizer := Normalizer{
		Start:         nr.time("start"),
		TScale:        nr.number("t_scale"),
		YScale:        nr.number("y_scale"),
		LogisticFloor: nr.boolean("logistic_floor"),
	}

	changepoints := r.times("changepoints")
	if model.specifiedChangepoints {
		model.changepoints = append([]time.Time(nil), changepoints...)
	}

	pr := r.child("params")
	params := Params{
		K:        pr.number("k"),
		M:        pr.number("m"),
		Deltas:   pr.floats("deltas"),
		Beta:     pr.floats("beta"),
		SigmaObs: pr.number("sigma_obs"),
	}

	dr := r.child("diagnostics")
	elapsed, _ := time.ParseDuration(dr.str("elapsed"))
	diagnostics := Diagnostics{
		Converged:       dr.boolean("converged"),
		Stage:           dr.str("stage"),
		Status:          dr.str("status"),
		Iterations:      int(dr.number("iterations")),
		FuncEvaluations: int(dr.number("func_evaluations")),
		LogPosterior:    dr.number("log_posterior"),
		Warning:         dr.str("warning"),
		Elapsed:         elapsed,
		RMSE:            dr.number("rmse"),
		MAE:             dr.number("mae"),
		MAPE:            dr.number("mape"),
	}
	if diagnostics.Warning != "" {
		diagnostics.Cause = ErrNotConverged
	}
	historyDates := r.times("history_dates")

	for _, e := range []error{r.err, mr.err, nr.err, pr.err, dr.err} {
		if e != nil {
			return nil, fmt.Errorf("%w: %w", ErrCorruptModel, e)
		}
	}

	for _, option := range options {
		option(model)
	}
	if err := model.validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorruptModel, err)
	}
	model.applyDefaults()

	fitted := newFitted(id, model, normalizer, changepoints, params, scales, historyDates, seed, diagnostics)
	if len(params.Beta) != len(fitted.features) || len(params.Deltas) != len(changepoints) {
		return nil, fmt.Errorf("%w: coefficient count does not match the configuration", ErrCorruptModel)
	}
	if !(normalizer.TScale > 0) || !(normalizer.YScale > 0) {
		return nil, fmt.Errorf("%w: non-positive scales", ErrCorruptModel)
	}
	return fitted, nil
}

// reader pulls typed fields out of a decoded struct and keeps the first
// error it meets.
type reader struct {
	fields map[string]any
	err    error
}

func (r *reader) get(key string) any {
	v, ok := r.fields[key]
	if !ok && r.err == nil {
		r.err = fmt.Errorf("missing field %q", key)
	}
	return v
}

func (r *reader) number(key string) float64 {
	v, ok := r.get(key).(float64)
	if !ok && r.err == nil {
		r.err = fmt.Errorf("field %q is not a number", key)
	}
	return v
}

func (r *reader) str(key string) string {
	v, ok := r.get(key).(string)
	if !ok && r.err == nil {
		r.err = fmt.Errorf("field %q is not a string", key)
	}
	return v
}

func (r *reader) boolean(key string) bool {
	v, ok := r.get(key).(bool)
	if !ok && r.err == nil {
		r.err = fmt.Errorf("field %q is not a bool", key)
	}
	return v
}

func (r *reader) list(key string) []any {
	v, ok := r.get(key).([]any)
	if !ok && r.err == nil {
		r.err = fmt.Errorf("field %q is not a list", key)
	}
	return v
}

func (r *reader) child(key string) *reader {
	v, ok := r.get(key).(map[string]any)
	if !ok && r.err == nil {
		r.err = fmt.Errorf("field %q is not an object", key)
	}
	return &reader{fields: v}
}

func (r *reader) time(key string) time.Time {
	ts, err := time.Parse(time.RFC3339Nano, r.str(key))
	if err != nil && r.err == nil {
		r.err = fmt.Errorf("field %q: %w", key, err)
	}
	return ts
}

func (r *reader) times(key string) []time.Time {
	items := r.list(key)
	out := make([]time.Time, 0, len(items))
	for _, item := range items {
		s, _ := item.(string)
		ts, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			if r.err == nil {
				r.err = fmt.Errorf("field %q: %w", key, err)
			}
			return nil
		}
		out = append(out, ts)
	}
	return out
}

func (r *reader) floats(key string) []float64 {
	items := r.list(key)
	out := make([]float64, 0, len(items))
	for _, item := range items {
		v, ok := item.(float64)
		if !ok {
			if r.err == nil {
				r.err = fmt.Errorf("field %q holds a non-number", key)
			}
			return nil
		}
		out = append(out, v)
	}
	return out
}

func asMap(v any) map[string]any {
	m, _ := v.(map[string]any)
	return m
}

func formatTime(ts time.Time) string {
	return ts.Format(time.RFC3339Nano)
}

func timesToList(ts []time.Time) []any {
	out := make([]any, len(ts))
	for i, t := range ts {
		out[i] = formatTime(t)
	}
	return out
}

func floatsToList(values []float64) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}

func finiteOrZero(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
