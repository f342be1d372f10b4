package engine

// ============================================================================
// CHART OPTIONS — Chart.js option shaping
// ============================================================================
// base → chart-type overrides → user overrides (params.options), each step a
// shallow merge: a top-level group present on both sides is merged key by
// key, anything deeper is replaced wholesale.
// ============================================================================

// BuildChartOptions returns the Chart.js options object for a widget.
func BuildChartOptions(t ChartType, params WidgetParams) map[string]any {
	opts := MergeOptions(baseOptions(params), typeOptions(t, params))
	return MergeOptions(opts, params.Options)
}

// MergeOptions merges override onto base one level deep. Neither input is
// modified.
func MergeOptions(base, override map[string]any) map[string]any {
	out := make(map[string]any, len(base)+len(override))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range override {
		baseGroup, okBase := out[k].(map[string]any)
		overGroup, okOver := v.(map[string]any)
		if !okBase || !okOver {
			out[k] = v
			continue
		}
		merged := make(map[string]any, len(baseGroup)+len(overGroup))
		for gk, gv := range baseGroup {
			merged[gk] = gv
		}
		for gk, gv := range overGroup {
			merged[gk] = gv
		}
		out[k] = merged
	}
	return out
}

func baseOptions(params WidgetParams) map[string]any {
	showLegend := true
	if params.ShowLegend != nil {
		showLegend = *params.ShowLegend
	}
	position := params.LegendPosition
	if position == "" {
		position = "top"
	}
	return map[string]any{
		"responsive":          true,
		"maintainAspectRatio": false,
		"plugins": map[string]any{
			"legend": map[string]any{"display": showLegend, "position": position},
		},
	}
}

func typeOptions(t ChartType, params WidgetParams) map[string]any {
	switch {
	case t == ChartBar || t == ChartLine || t == ChartArea:
		return map[string]any{
			"scales": map[string]any{
				"x": axis(params.XAxisLabel, map[string]any{"stacked": params.Stacked}),
				"y": axis(params.YAxisLabel, map[string]any{"stacked": params.Stacked, "beginAtZero": true}),
			},
		}
	case t.IsPieFamily():
		return map[string]any{
			"plugins": map[string]any{
				"tooltip": map[string]any{
					"callbacks": map[string]any{"label": "percentage"},
				},
			},
		}
	case t.IsXY():
		return map[string]any{
			"scales": map[string]any{
				"x": axis(params.XAxisLabel, map[string]any{"type": "linear", "position": "bottom"}),
				"y": axis(params.YAxisLabel, map[string]any{"type": "linear"}),
			},
		}
	case t == ChartRadar:
		return map[string]any{
			"scales": map[string]any{
				"r": map[string]any{"beginAtZero": true},
			},
		}
	}
	return nil
}

func axis(title string, settings map[string]any) map[string]any {
	if title != "" {
		settings["title"] = map[string]any{"display": true, "text": title}
	}
	return settings
}
