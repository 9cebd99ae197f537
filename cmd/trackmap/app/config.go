package app

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
)

const (
	ImagePNG  ImageFormat = "png"
	ImageJPEG ImageFormat = "jpeg"

	defaultScale        = 20.0
	defaultSafetyMargin = 3.0
)

type ImageFormat string

type Config struct {
	DBPath        string
	CSVPath       string
	MissionID     int64
	OutputFile    string
	Format        ImageFormat
	Scale         float64 // pixels per meter
	SafetyMargin  float64 // drawn as a ring around every obstacle
	Obstacles     string  // CSV mode only: "north:east:radius,..."
	NoAnnotations bool
}

var validImageFormats = map[ImageFormat]struct{}{
	ImagePNG:  {},
	ImageJPEG: {},
}

func NewConfig() *Config {
	return &Config{
		Format:       ImagePNG,
		Scale:        defaultScale,
		SafetyMargin: defaultSafetyMargin,
	}
}

func NewConfigFromCLI() (*Config, error) {
	fs := flag.NewFlagSet(os.Args[0], flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: %s (-db <file> [-m <mission id>] | -csv <file>) -o <output> [options]\n\n", fs.Name())
		fmt.Fprintln(fs.Output(), "Renders the flight track of a mission log over its obstacles.")
		fmt.Fprintln(fs.Output())
		fs.PrintDefaults()
	}
	return parseConfig(fs, os.Args[1:])
}

func parseConfig(fs *flag.FlagSet, args []string) (*Config, error) {
	c := NewConfig()

	var imageFormat string
	fs.StringVar(&c.DBPath, "db", "", "Path to the mission database file")
	fs.StringVar(&c.CSVPath, "csv", "", "Path to a mission log CSV file, instead of the database")
	fs.Int64Var(&c.MissionID, "m", 0, "Mission ID, the latest mission when omitted")
	fs.StringVar(&c.OutputFile, "o", "", "Path to the output file, without extension")
	fs.StringVar(&imageFormat, "f", string(ImagePNG), "Output image format. [png, jpeg]")
	fs.Float64Var(&c.Scale, "scale", defaultScale, "Pixels per meter")
	fs.Float64Var(&c.SafetyMargin, "margin", defaultSafetyMargin, "Safety margin drawn around obstacles, meters")
	fs.StringVar(&c.Obstacles, "obstacles", "", "Obstacles for CSV logs (format north:east:radius,...)")
	fs.BoolVar(&c.NoAnnotations, "no-annotations", false, "Disable annotations such as the scale and the info block")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	imageFormat = strings.ToLower(imageFormat)

	var err error
	if c.DBPath == "" && c.CSVPath == "" {
		err = errors.New("db or csv path is required")
	} else if c.DBPath != "" && c.CSVPath != "" {
		err = errors.New("db and csv paths are mutually exclusive")
	} else if c.MissionID < 0 {
		err = errors.New("mission id must not be negative")
	} else if c.OutputFile == "" {
		err = errors.New("output file is required")
	} else if c.Scale <= 0 {
		err = fmt.Errorf("scale must be positive: %g", c.Scale)
	} else if c.SafetyMargin < 0 {
		err = fmt.Errorf("safety margin must not be negative: %g", c.SafetyMargin)
	} else if _, ok := validImageFormats[ImageFormat(imageFormat)]; !ok {
		err = fmt.Errorf("invalid image format: %s", imageFormat)
	}

	if err != nil {
		fs.Usage()
		return nil, err
	}

	c.Format = ImageFormat(imageFormat)
	c.OutputFile = fmt.Sprintf("%s.%s", c.OutputFile, c.Format)
	return c, nil
}
