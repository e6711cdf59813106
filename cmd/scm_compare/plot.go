package main

import (
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cast"
	"github.com/spf13/viper"
	"github.com/user/scm_compare_go/internal/analysis"
	"github.com/user/scm_compare_go/internal/parser"
	"github.com/user/scm_compare_go/internal/report"
)

// Figure groups drawn by the plot command.
const (
	meanFigures       = "mean"
	sheetFigures      = "sheets"
	contourFigures    = "contours"
	timeseriesFigures = "timeseries"
)

var figureGroups = []string{meanFigures, sheetFigures, contourFigures, timeseriesFigures}

// plotConfig is the resolved configuration of the plot command.
type plotConfig struct {
	SCM, LES string
	Window   analysis.Window
	Folder   string
	Format   string
	Figures  []string
	Report   string
	Title    string
	Strict   bool
}

// plotConfigFrom reads the plot options from cfg. Figure groups may be given
// as a list or as one comma-separated string.
func plotConfigFrom(cfg *viper.Viper) (plotConfig, error) {
	pc := plotConfig{
		SCM:    cfg.GetString("scm"),
		LES:    cfg.GetString("les"),
		Window: analysis.Window{Start: cfg.GetFloat64("tmin"), End: cfg.GetFloat64("tmax")},
		Folder: cfg.GetString("folder"),
		Format: cfg.GetString("format"),
		Report: cfg.GetString("report"),
		Title:  cfg.GetString("title"),
		Strict: cfg.GetBool("strict"),
	}
	if pc.SCM == "" || pc.LES == "" {
		return pc, fmt.Errorf("scm_compare: both --scm and --les statistics files are required")
	}

	groups, err := cast.ToStringSliceE(cfg.Get("figures"))
	if err != nil {
		return pc, fmt.Errorf("scm_compare: invalid figures option: %v", err)
	}
	for _, g := range groups {
		for _, name := range strings.Split(g, ",") {
			name = strings.TrimSpace(name)
			if name == "" {
				continue
			}
			if !isFigureGroup(name) {
				return pc, fmt.Errorf("scm_compare: unknown figure group %q, want one of %s", name, strings.Join(figureGroups, ", "))
			}
			if contains(pc.Figures, name) {
				continue
			}
			pc.Figures = append(pc.Figures, name)
		}
	}
	return pc, nil
}

func isFigureGroup(name string) bool { return contains(figureGroups, name) }

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// runPlot loads both statistics files, draws the configured figure groups
// and writes the optional PDF summary. It returns the written figures.
func runPlot(pc plotConfig, log logrus.FieldLogger) ([]report.Figure, error) {
	popts := parser.Options{Strict: pc.Strict, Log: log}

	log.WithField("path", pc.SCM).Info("reading model statistics")
	scmFile, err := parser.OpenCDF(pc.SCM)
	if err != nil {
		return nil, err
	}
	defer scmFile.Close()
	log.WithField("path", pc.LES).Info("reading reference statistics")
	lesFile, err := parser.OpenCDF(pc.LES)
	if err != nil {
		return nil, err
	}
	defer lesFile.Close()

	modelTable, err := parser.ReadProfiles(scmFile, parser.Model, parser.ModelProfileVars, popts)
	if err != nil {
		return nil, err
	}
	refTable, err := parser.ReadProfiles(lesFile, parser.Reference, parser.ReferenceProfileVars, popts)
	if err != nil {
		return nil, err
	}
	model, err := analysis.NewView(modelTable)
	if err != nil {
		return nil, err
	}
	ref, err := analysis.NewView(refTable)
	if err != nil {
		return nil, err
	}
	substituted := map[string][]string{
		parser.Model.String():     model.Substituted(),
		parser.Reference.String(): ref.Substituted(),
	}

	ropts := report.DefaultOptions(pc.Folder)
	ropts.Format = pc.Format
	ropts.Log = log

	var figs []report.Figure
	var comparisons []*analysis.ProfileComparison
	for _, group := range pc.Figures {
		log.WithField("group", group).Info("drawing figures")
		switch group {
		case meanFigures:
			results, err := report.PlotProfiles(model, ref, report.MeanProfiles, pc.Window, ropts)
			if err != nil {
				return figs, err
			}
			for _, r := range results {
				figs = append(figs, r.Figure)
				comparisons = append(comparisons, r.Comparison)
			}
		case sheetFigures:
			sheets, err := report.PlotSheets(model, ref, report.Sheets, pc.Window, ropts)
			if err != nil {
				return figs, err
			}
			figs = append(figs, sheets...)
		case contourFigures:
			contours, err := report.PlotContours(model, ref, report.Contours, ropts)
			if err != nil {
				return figs, err
			}
			figs = append(figs, contours...)
		case timeseriesFigures:
			modelTS, err := parser.ReadTimeseries(scmFile, parser.Model, popts)
			if err != nil {
				return figs, err
			}
			refTS, err := parser.ReadTimeseries(lesFile, parser.Reference, popts)
			if err != nil {
				return figs, err
			}
			substituted[parser.Model.String()] = append(substituted[parser.Model.String()], modelTS.Substituted...)
			substituted[parser.Reference.String()] = append(substituted[parser.Reference.String()], refTS.Substituted...)
			f, err := report.PlotTimeseries(modelTS, refTS, ropts)
			if err != nil {
				return figs, err
			}
			figs = append(figs, f)
		}
	}

	ranked := analysis.RankDiscrepancies(comparisons)
	for _, d := range ranked {
		log.WithFields(logrus.Fields{"profile": d.Label, "levels": d.Levels, "bias": d.Bias, "rms": d.RMS}).Debug("profile discrepancy")
	}

	if pc.Report != "" {
		log.WithField("path", pc.Report).Info("writing summary report")
		err := report.BuildPDFReport(pc.Report, report.Summary{
			Title:         pc.Title,
			Window:        pc.Window,
			Discrepancies: ranked,
			Substituted:   substituted,
			Figures:       figs,
		})
		if err != nil {
			return figs, fmt.Errorf("scm_compare: writing report: %w", err)
		}
	}
	return figs, nil
}
