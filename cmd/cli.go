package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"pitchosc/internal/config"
	"pitchosc/pkg/build"
)

// Commands selected by ParseArgs.
const (
	CommandRun     = "run"
	CommandList    = "list"
	CommandRender  = "render"
	CommandAnalyze = "analyze"
)

// Options are the parsed command line. Flag values are only applied to the
// configuration when the flag was given explicitly.
type Options struct {
	Command    string
	Args       []string
	ConfigPath string
	TUI        bool
	Record     bool
	Verbose    bool
	Window     string

	InputDevice  int
	OutputDevice int
	SampleRate   uint32
	BlockSize    int
	PlayerIndex  int

	LowestFrequency  float64
	HighestFrequency float64

	changed map[string]bool
}

// ParseArgs parses args (without the program name).
func ParseArgs(args []string) (*Options, error) {
	buildInfo := build.GetBuildFlags()
	options := &Options{changed: make(map[string]bool)}

	selected := func(name string) func(cmd *cobra.Command, args []string) {
		return func(cmd *cobra.Command, args []string) {
			options.Command = name
			options.Args = args
		}
	}

	rootCmd := &cobra.Command{
		Use:           buildInfo.Name,
		Short:         buildInfo.Description,
		Version:       buildInfo.Version,
		Args:          cobra.NoArgs,
		SilenceErrors: true,
		SilenceUsage:  true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd:   true,
			DisableDescriptions: true,
			DisableNoDescFlag:   true,
			HiddenDefaultCmd:    true,
		},
		Run: selected(CommandRun),
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			cmd.Flags().Visit(func(f *pflag.Flag) { options.changed[f.Name] = true })
		},
	}
	rootCmd.SetHelpCommand(&cobra.Command{Hidden: true})

	rootCmd.AddCommand(
		&cobra.Command{
			Use:   "run",
			Short: "Track the left input and play the sine on the left output (default)",
			Args:  cobra.NoArgs,
			Run:   selected(CommandRun),
		},
		&cobra.Command{
			Use:   "list",
			Short: "List available audio devices and MIDI ports",
			Args:  cobra.NoArgs,
			Run:   selected(CommandList),
		},
		&cobra.Command{
			Use:   "render <in.wav> <out.wav>",
			Short: "Run the tracker over a WAV file without an audio device",
			Args:  cobra.ExactArgs(2),
			Run:   selected(CommandRender),
		},
		&cobra.Command{
			Use:   "analyze <file.wav>",
			Short: "Measure the fundamental of each channel of a WAV file",
			Args:  cobra.ExactArgs(1),
			Run:   selected(CommandAnalyze),
		},
	)

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&options.ConfigPath, "config", "c", "",
		"Path to a YAML configuration file (default: ./config.yaml if present)")
	flags.BoolVarP(&options.TUI, "tui", "t", false,
		"Show the live tracker monitor")
	flags.BoolVarP(&options.Record, "record", "r", false,
		"Record the output stream to recording.output_dir")
	flags.BoolVarP(&options.Verbose, "verbose", "v", false,
		"Show verbose output")

	// Audio Device Configuration
	flags.IntVarP(&options.InputDevice, "input-device", "i", config.DefaultDeviceID,
		"Input device ID. Use 'list' command to see available devices.")
	flags.IntVarP(&options.OutputDevice, "output-device", "o", config.DefaultDeviceID,
		"Output device ID. Use 'list' command to see available devices.")
	flags.Uint32VarP(&options.SampleRate, "sample-rate", "s", config.DefaultSampleRate,
		"Sample rate, measured in Hertz (Hz)")
	flags.IntVarP(&options.BlockSize, "block-size", "b", config.DefaultBlockSize,
		"The number of frames per callback (affects latency)")
	flags.IntVarP(&options.PlayerIndex, "file", "f", 0,
		"Stream this WAV file index from player.directory on the right channel")

	flags.StringVarP(&options.Window, "window", "w", "hann",
		"FFT window for analyze (hann, hamming, blackman, blackmannuttall, bartletthann, lanczos, nuttall)")

	// Tracking
	flags.Float64Var(&options.LowestFrequency, "lowest", config.DefaultLowestFrequency,
		"Lowest trackable frequency in Hz")
	flags.Float64Var(&options.HighestFrequency, "highest", config.DefaultHighestFreq,
		"Highest trackable frequency in Hz")

	rootCmd.SetArgs(args)
	if err := rootCmd.Execute(); err != nil {
		return nil, err
	}
	return options, nil
}

// Changed reports whether the named flag was given.
func (o *Options) Changed(name string) bool { return o.changed[name] }

// Apply copies explicitly given flags over cfg.
func (o *Options) Apply(cfg *config.Config) {
	if o.Changed("input-device") {
		cfg.Audio.InputDevice = o.InputDevice
	}
	if o.Changed("output-device") {
		cfg.Audio.OutputDevice = o.OutputDevice
	}
	if o.Changed("sample-rate") {
		cfg.Audio.SampleRate = o.SampleRate
	}
	if o.Changed("block-size") {
		cfg.Audio.BlockSize = o.BlockSize
	}
	if o.Changed("file") {
		cfg.Player.Enabled = true
		cfg.Player.Index = o.PlayerIndex
	}
	if o.Changed("lowest") {
		cfg.Tracking.LowestFrequency = o.LowestFrequency
	}
	if o.Changed("highest") {
		cfg.Tracking.HighestFrequency = o.HighestFrequency
	}
	if o.Record {
		cfg.Recording.Enabled = true
	}
	if o.Verbose {
		cfg.Debug = true
	}
}
