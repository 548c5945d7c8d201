package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/rtm0/marineclim/internal/apperr"
	"github.com/rtm0/marineclim/internal/climatology"
	"github.com/rtm0/marineclim/internal/config"
	"github.com/rtm0/marineclim/internal/fetch"
	"github.com/rtm0/marineclim/internal/grid"
	"github.com/rtm0/marineclim/internal/observability"
	"github.com/rtm0/marineclim/internal/peak"
)

func climatologyCmd(fs *flag.FlagSet) func(context.Context, *app) error {
	var cfg config.Climatology
	fs.StringVar(&cfg.Input, "in", "", "path to the input gridded file in NetCDF format")
	fs.StringVar(&cfg.Output, "out", "", "path of the output NetCDF file")
	vars := fs.String("var", "", "comma-separated names of the variables to reduce")
	fs.IntVar(&cfg.ChunkSize, "chunk", config.DefaultChunkSize, "number of time steps loaded per block")
	fs.StringVar(&cfg.Strategy, "strategy", climatology.TwoPass.String(), "scan strategy: two-pass or single-pass")
	fs.BoolVar(&cfg.KeepGoing, "keep-going", false, "skip variables absent from the input instead of aborting")
	return func(_ context.Context, a *app) error {
		cfg.Variables = config.SplitList(*vars)
		return a.climatology(cfg)
	}
}

func (a *app) climatology(cfg config.Climatology) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	strategy, err := climatology.ParseStrategy(cfg.Strategy)
	if err != nil {
		return err
	}

	f, err := grid.Open(cfg.Input)
	if err != nil {
		return err
	}
	defer f.Close()
	a.logger.Info("Input summary", f.Summary()...)

	var out *grid.Dataset
	for _, name := range cfg.Variables {
		v, err := f.Variable(name)
		if err != nil {
			if cfg.KeepGoing && errors.Is(err, apperr.ErrVariableNotFound) {
				a.logger.Warn("Skipping variable", "variable", name, "err", err)
				a.metrics.VariablesSkipped.Inc()
				continue
			}
			return err
		}
		ds, err := climatology.Reduce(v, climatology.Options{
			ChunkSize: cfg.ChunkSize,
			Strategy:  strategy,
			Logger:    a.logger,
			Recorder:  a.metrics,
		})
		if err != nil {
			return fmt.Errorf("reduce %q: %w", name, err)
		}
		if out == nil {
			out = ds
			continue
		}
		if err := out.Merge(ds); err != nil {
			return fmt.Errorf("reduce %q: %w", name, err)
		}
	}
	if out == nil {
		return apperr.NewVariableNotFound(cfg.Input, strings.Join(cfg.Variables, ","),
			errors.New("none of the requested variables exist"))
	}

	out.Attrs = grid.Attributes{
		{Name: "title", Value: "Monthly climatologies and overall annual statistics"},
		{Name: "Conventions", Value: "CF-1.8"},
		{Name: "source", Value: cfg.Input},
		{Name: "history", Value: observability.History(a.args)},
	}
	a.logger.Info("Saving layers", "count", len(out.Layers()), "path", cfg.Output)
	if err := grid.Write(cfg.Output, out); err != nil {
		return err
	}
	a.metrics.LayersWritten.Add(float64(len(out.Layers())))
	a.logger.Info("Saved layers", "count", len(out.Layers()), "path", cfg.Output)
	return a.export(out)
}

func peakCmd(fs *flag.FlagSet) func(context.Context, *app) error {
	var cfg config.Peak
	fs.StringVar(&cfg.Input, "in", "", "path to the input gridded file in NetCDF format")
	fs.StringVar(&cfg.Output, "out", "", "path of the output NetCDF file")
	fs.StringVar(&cfg.East, "east", "uo", "name of the eastward component")
	fs.StringVar(&cfg.North, "north", "vo", "name of the northward component")
	fs.StringVar(&cfg.Name, "name", peak.DefaultName, "name of the output layer")
	fs.IntVar(&cfg.ChunkSize, "chunk", config.DefaultChunkSize, "number of time steps loaded per block")
	return func(_ context.Context, a *app) error {
		return a.peak(cfg)
	}
}

func (a *app) peak(cfg config.Peak) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	f, err := grid.Open(cfg.Input)
	if err != nil {
		return err
	}
	defer f.Close()
	a.logger.Info("Input summary", f.Summary()...)

	east, err := f.Variable(cfg.East)
	if err != nil {
		return err
	}
	north, err := f.Variable(cfg.North)
	if err != nil {
		return err
	}
	ds, err := peak.Reduce(east, north, peak.Options{Name: cfg.Name, ChunkSize: cfg.ChunkSize, Logger: a.logger})
	if err != nil {
		return err
	}
	a.metrics.StepsRead("peak", east.Len())

	ds.Attrs = grid.Attributes{
		{Name: "title", Value: "Maximum velocity magnitude"},
		{Name: "Conventions", Value: "CF-1.8"},
		{Name: "source", Value: cfg.Input},
		{Name: "history", Value: observability.History(a.args)},
	}
	if err := grid.Write(cfg.Output, ds); err != nil {
		return err
	}
	a.metrics.LayersWritten.Inc()
	a.logger.Info("Saved maximum velocity magnitude", "path", cfg.Output, "layer", cfg.Name)
	return a.export(ds)
}

func fetchCmd(fs *flag.FlagSet) func(context.Context, *app) error {
	preset := fs.String("dataset", "", "catalog preset to download (see marineclim catalog)")
	id := fs.String("id", "", "dataset identifier, overrides the preset")
	vars := fs.String("vars", "", "comma-separated variable names, override the preset")
	bbox := fs.String("bbox", "", "bounding box minLon,maxLon,minLat,maxLat, overrides the preset")
	start := fs.String("start", "", "start datetime YYYY-MM-DD[THH:MM:SS], overrides the preset")
	end := fs.String("end", "", "end datetime YYYY-MM-DD[THH:MM:SS], overrides the preset")
	output := fs.String("o", "", "output filename, overrides the preset")
	dir := fs.String("dir", "", "output directory, overrides the preset")
	bin := fs.String("bin", fetch.DefaultBinary, "data service command line client")
	return func(ctx context.Context, a *app) error {
		var req fetch.Request
		if *preset != "" {
			p, ok := fetch.Lookup(*preset)
			if !ok {
				return fmt.Errorf("unknown dataset preset %q", *preset)
			}
			req = p.Request
		}
		if *id != "" {
			req.DatasetID = *id
		}
		if *vars != "" {
			req.Variables = config.SplitList(*vars)
		}
		if *bbox != "" {
			b, err := fetch.ParseBBox(*bbox)
			if err != nil {
				return err
			}
			req.BBox = b
		}
		if *start != "" {
			t, err := fetch.ParseTime(*start)
			if err != nil {
				return err
			}
			req.Start = t
		}
		if *end != "" {
			t, err := fetch.ParseTime(*end)
			if err != nil {
				return err
			}
			req.End = t
		}
		if *output != "" {
			req.OutputFilename = *output
		}
		if *dir != "" {
			req.OutputDirectory = *dir
		}

		creds, err := config.LoadCredentials()
		if err != nil {
			return apperr.NewAuth(err)
		}
		path, err := fetch.NewClient(a.logger, *bin, creds, nil).Subset(ctx, req)
		if err != nil {
			return err
		}
		fmt.Fprintln(a.stdout, path)
		return nil
	}
}

func catalogCmd(*flag.FlagSet) func(context.Context, *app) error {
	return func(_ context.Context, a *app) error {
		tw := tabwriter.NewWriter(a.stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "KEY\tDATASET\tVARIABLES\tOUTPUT\tDESCRIPTION")
		for _, p := range fetch.Catalog() {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", p.Key, p.Request.DatasetID,
				strings.Join(p.Request.Variables, ","), p.Request.OutputPath(), p.Description)
		}
		return tw.Flush()
	}
}
