package main

import (
	"fmt"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/user/scm_compare_go/internal/harness"
	"github.com/user/scm_compare_go/internal/paramlist"
)

// version is the release of the comparison tooling.
const version = "0.3.0"

// Cfg holds configuration information.
var Cfg *viper.Viper

// logger receives the log output of every command.
var logger = logrus.New()

var options []struct {
	name, usage, shorthand string
	defaultVal             interface{}
	flagsets               []*pflag.FlagSet
}

func init() {
	options = []struct {
		name, usage, shorthand string
		defaultVal             interface{}
		flagsets               []*pflag.FlagSet
	}{
		{
			name: "config",
			usage: `
              config specifies the configuration file location.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "verbose",
			usage: `
              verbose enables debug logging.`,
			shorthand:  "v",
			defaultVal: false,
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "dir",
			usage: `
              dir is the directory the parameter and namelist files are
              read from and written to.`,
			defaultVal: ".",
			flagsets:   []*pflag.FlagSet{paramlistCmd.Flags(), setupCmd.Flags(), cleanCmd.Flags()},
		},
		{
			name: "scm",
			usage: `
              scm is the statistics file written by the single-column model.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{plotCmd.Flags()},
		},
		{
			name: "les",
			usage: `
              les is the reference LES statistics file.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{plotCmd.Flags()},
		},
		{
			name: "tmin",
			usage: `
              tmin is the start of the averaging window [h]. Only samples
              strictly after tmin are averaged.`,
			defaultVal: 0.0,
			flagsets:   []*pflag.FlagSet{plotCmd.Flags()},
		},
		{
			name: "tmax",
			usage: `
              tmax is the end of the averaging window [h]. The default of
              -1 averages through the last sample.`,
			defaultVal: -1.0,
			flagsets:   []*pflag.FlagSet{plotCmd.Flags()},
		},
		{
			name: "folder",
			usage: `
              folder receives one file per figure.`,
			defaultVal: "plots/output",
			flagsets:   []*pflag.FlagSet{plotCmd.Flags()},
		},
		{
			name: "format",
			usage: `
              format is the figure file format: png, pdf, svg, eps, jpg or tif.`,
			defaultVal: "png",
			flagsets:   []*pflag.FlagSet{plotCmd.Flags()},
		},
		{
			name: "figures",
			usage: `
              figures lists the figure groups to draw: mean, sheets,
              contours and timeseries.`,
			defaultVal: []string{"mean", "sheets", "contours", "timeseries"},
			flagsets:   []*pflag.FlagSet{plotCmd.Flags()},
		},
		{
			name: "report",
			usage: `
              report is the path of a PDF summary of the figures and the
              profile discrepancies. No report is written when empty.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{plotCmd.Flags()},
		},
		{
			name: "title",
			usage: `
              title is the heading of the PDF summary.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{plotCmd.Flags()},
		},
		{
			name: "strict",
			usage: `
              strict fails on variables missing from either statistics file
              instead of drawing them as zeros.`,
			defaultVal: false,
			flagsets:   []*pflag.FlagSet{plotCmd.Flags()},
		},
	}

	Cfg = viper.New()

	// Set the prefix for configuration environment variables.
	Cfg.SetEnvPrefix("SCM_COMPARE")
	Cfg.AutomaticEnv()

	for _, option := range options {
		for i, set := range option.flagsets {
			if i != 0 { // We don't want to create the same flag twice.
				set.AddFlag(option.flagsets[0].Lookup(option.name))
				continue
			}
			switch v := option.defaultVal.(type) {
			case string:
				set.StringP(option.name, option.shorthand, v, option.usage)
			case []string:
				set.StringSliceP(option.name, option.shorthand, v, option.usage)
			case bool:
				set.BoolP(option.name, option.shorthand, v, option.usage)
			case float64:
				set.Float64P(option.name, option.shorthand, v, option.usage)
			default:
				panic("invalid argument type")
			}
			Cfg.BindPFlag(option.name, set.Lookup(option.name))
		}
	}
}

func init() {
	Root.AddCommand(versionCmd)
	Root.AddCommand(paramlistCmd)
	Root.AddCommand(setupCmd)
	Root.AddCommand(cleanCmd)
	Root.AddCommand(plotCmd)
}

// setConfig finds and reads in the configuration file, if there is one,
// and sets up logging.
func setConfig(cmd *cobra.Command) error {
	if cfgpath := Cfg.GetString("config"); cfgpath != "" {
		Cfg.SetConfigFile(cfgpath)
		if err := Cfg.ReadInConfig(); err != nil {
			return fmt.Errorf("scm_compare: problem reading configuration file: %v", err)
		}
	}
	logger.SetOutput(cmd.ErrOrStderr())
	logger.SetLevel(logrus.InfoLevel)
	if Cfg.GetBool("verbose") {
		logger.SetLevel(logrus.DebugLevel)
	}
	return nil
}

// Root is the main command.
var Root = &cobra.Command{
	Use:   "scm_compare",
	Short: "Single-column model test tooling.",
	Long: `scm_compare writes the parameter files of single-column model test runs
and compares the statistics the model writes with reference LES statistics.

Configuration can be changed by using a configuration file (and providing the
path to the file using the --config flag), by using command-line arguments,
or by setting environment variables in the format 'SCM_COMPARE_var' where 'var'
is the name of the variable to be set.`,
	DisableAutoGenTag: true,
	SilenceErrors:     true,
	SilenceUsage:      true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error { return setConfig(cmd) },
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "scm_compare v%s\n", version)
	},
	DisableAutoGenTag: true,
}

var paramlistCmd = &cobra.Command{
	Use:   "paramlist case",
	Short: "Write the model parameter file for a case.",
	Long: `paramlist writes the closure coefficients of the named case to
paramlist.in in --dir and prints them.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := paramlist.ParseCase(args[0])
		if err != nil {
			return err
		}
		tree, err := paramlist.Build(c)
		if err != nil {
			return err
		}
		path := filepath.Join(Cfg.GetString("dir"), paramlist.FileName)
		if err := paramlist.Write(path, tree); err != nil {
			return err
		}
		b, err := paramlist.Marshal(tree)
		if err != nil {
			return err
		}
		logger.WithFields(logrus.Fields{"case": c.String(), "path": path}).Info("wrote parameter file")
		fmt.Fprintln(cmd.OutOrStdout(), string(b))
		return nil
	},
	DisableAutoGenTag: true,
}

var setupCmd = &cobra.Command{
	Use:   "setup case",
	Short: "Prepare the input files of a test run.",
	Long: `setup rewrites the namelist <case>.in in --dir so the run writes its
output under the test directory, writes paramlist_<case>.in next to it and
prints the path of the statistics file the run will produce.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sim, err := harness.Setup(Cfg.GetString("dir"), args[0], logger)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), sim.StatsPath)
		return nil
	},
	DisableAutoGenTag: true,
}

var cleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Remove generated test run files.",
	Long:  `clean removes the test run output directories and generated .in files from --dir.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		removed, err := harness.Clean(Cfg.GetString("dir"), logger)
		if err != nil {
			return err
		}
		logger.WithField("count", len(removed)).Info("removed generated files")
		return nil
	},
	DisableAutoGenTag: true,
}

var plotCmd = &cobra.Command{
	Use:   "plot",
	Short: "Compare model statistics with reference LES statistics.",
	Long: `plot reads the --scm and --les statistics files and draws the selected
figure groups into --folder. Profiles are averaged over the samples after
--tmin and up to --tmax hours.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		pc, err := plotConfigFrom(Cfg)
		if err != nil {
			return err
		}
		figs, err := runPlot(pc, logger)
		if err != nil {
			return err
		}
		for _, f := range figs {
			fmt.Fprintln(cmd.OutOrStdout(), f.Path)
		}
		return nil
	},
	DisableAutoGenTag: true,
}
