package main

import (
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/eigerco/jamtarget/internal/store"
)

const (
	constantsKey       = "jam_constants"
	socketPathKey      = "socket_path"
	historySizeKey     = "history_size"
	bandersnatchLibKey = "bandersnatch_lib"
	wallClockKey       = "check_wall_clock"
	logLevelKey        = "log_level"
	logTypeKey         = "log_type"
	debugStepsKey      = "debug_steps"
	debugTracesKey     = "debug_traces"
	debugFSKey         = "debug_fs"

	defaultSocketPath = "/tmp/jam_target.sock"
)

type config struct {
	Constants       string
	SocketPath      string
	HistorySize     int
	BandersnatchLib string
	CheckWallClock  bool
	LogLevel        string
	LogType         string
	DebugSteps      bool
	DebugTraces     bool
	DebugFS         bool
}

func buildFlagSet(fs *pflag.FlagSet) {
	fs.String(constantsKey, "full", "Chain constants, \"tiny\" or \"full\"")
	fs.String(socketPathKey, defaultSocketPath, "Unix socket the fuzzer connects to")
	fs.Int(historySizeKey, store.DefaultHistorySize, "Number of posterior states kept for GetState")
	fs.String(bandersnatchLibKey, "", "Path to the native bandersnatch verifier library")
	fs.Bool(wallClockKey, false, "Reject blocks from future timeslots")
	fs.String(logLevelKey, "info", "Log level")
	fs.String(logTypeKey, "console", "Log format, \"console\" or \"json\"")
	fs.Bool(debugStepsKey, false, "Log every executed PVM instruction")
	fs.Bool(debugTracesKey, false, "Log every state transition stage")
	fs.Bool(debugFSKey, false, "Log the raw bytes of every fuzz message")
}

// newViper binds every flag to the environment variable of the same name in
// upper case, e.g. --socket_path and SOCKET_PATH. Flags set explicitly win.
func newViper(fs *pflag.FlagSet) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	if err := v.BindPFlags(fs); err != nil {
		return nil, err
	}
	return v, nil
}

func loadConfig(v *viper.Viper) config {
	return config{
		Constants:       v.GetString(constantsKey),
		SocketPath:      v.GetString(socketPathKey),
		HistorySize:     v.GetInt(historySizeKey),
		BandersnatchLib: v.GetString(bandersnatchLibKey),
		CheckWallClock:  v.GetBool(wallClockKey),
		LogLevel:        v.GetString(logLevelKey),
		LogType:         v.GetString(logTypeKey),
		DebugSteps:      v.GetBool(debugStepsKey),
		DebugTraces:     v.GetBool(debugTracesKey),
		DebugFS:         v.GetBool(debugFSKey),
	}
}
