// Package chart turns a chart request into a renderable recipe: the chart
// kind plus the series extracted from the table. Rendering itself is the
// client's job; this package only validates selectors and pulls values.
package chart

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/comigor/csvchat-go/internal/dataset"
)

// ErrBadRequest is wrapped by every invalid chart request: unknown kind,
// missing column, or a column of the wrong type for the kind.
var ErrBadRequest = errors.New("invalid chart request")

// Kind enumerates the supported chart types.
type Kind string

const (
	KindBar       Kind = "bar"
	KindLine      Kind = "line"
	KindScatter   Kind = "scatter"
	KindPie       Kind = "pie"
	KindHistogram Kind = "histogram"
	KindBox       Kind = "box"
)

// Request selects a chart kind and the columns to draw. Y is ignored for
// histogram and box, which draw a single numeric column named by X; a line
// may likewise omit Y to plot the numeric column X against the row index.
type Request struct {
	Kind Kind   `json:"kind"`
	X    string `json:"x"`
	Y    string `json:"y,omitempty"`
}

// Recipe is the renderable result. Exactly one of the series layouts is
// populated depending on the kind: Labels+Values for bar/pie/line,
// XValues+YValues for scatter, Values alone for histogram/box.
type Recipe struct {
	Kind    Kind      `json:"kind"`
	XLabel  string    `json:"x_label,omitempty"`
	YLabel  string    `json:"y_label,omitempty"`
	Labels  []string  `json:"labels,omitempty"`
	Values  []float64 `json:"values,omitempty"`
	XValues []float64 `json:"x_values,omitempty"`
	YValues []float64 `json:"y_values,omitempty"`
}

// Build validates the request against the table and extracts the series.
func Build(t *dataset.Table, req Request) (*Recipe, error) {
	switch req.Kind {
	case KindLine:
		// A line over a single numeric column plots against the row index.
		if req.Y == "" {
			return single(t, req)
		}
		return labeled(t, req)
	case KindBar, KindPie:
		return labeled(t, req)
	case KindScatter:
		return scatter(t, req)
	case KindHistogram, KindBox:
		return single(t, req)
	default:
		return nil, fmt.Errorf("%w: unknown kind %q", ErrBadRequest, req.Kind)
	}
}

func labeled(t *dataset.Table, req Request) (*Recipe, error) {
	labels, err := t.Values(req.X)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadRequest, err)
	}
	raw, err := t.Values(req.Y)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadRequest, err)
	}

	// Pairwise: rows where the value cell is empty or non-numeric are skipped
	// together with their label.
	outLabels := make([]string, 0, len(labels))
	outValues := make([]float64, 0, len(raw))
	for i, cell := range raw {
		if cell == "" {
			continue
		}
		f, err := strconv.ParseFloat(cell, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: column %q is not numeric", ErrBadRequest, req.Y)
		}
		outLabels = append(outLabels, labels[i])
		outValues = append(outValues, f)
	}

	return &Recipe{
		Kind:   req.Kind,
		XLabel: req.X,
		YLabel: req.Y,
		Labels: outLabels,
		Values: outValues,
	}, nil
}

func scatter(t *dataset.Table, req Request) (*Recipe, error) {
	xs, err := t.NumericValues(req.X)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadRequest, err)
	}
	ys, err := t.NumericValues(req.Y)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadRequest, err)
	}
	if len(xs) != len(ys) {
		return nil, fmt.Errorf("%w: columns %q and %q have different numeric lengths", ErrBadRequest, req.X, req.Y)
	}
	return &Recipe{Kind: KindScatter, XLabel: req.X, YLabel: req.Y, XValues: xs, YValues: ys}, nil
}

func single(t *dataset.Table, req Request) (*Recipe, error) {
	vals, err := t.NumericValues(req.X)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadRequest, err)
	}
	return &Recipe{Kind: req.Kind, XLabel: req.X, Values: vals}, nil
}
