package internal

import "time"

type Config struct {
	BadgerFilepath string `env:"BADGER_FILEPATH,required=true"`
	BlugeFilepath  string `env:"BLUGE_FILEPATH,required=true"`
	LogLevel       string `env:"LOG_LEVEL,default=info"`
	AuthSecret     string `env:"AUTH_SECRET,required=true"`

	OperationTimeout  time.Duration `env:"OPERATION_TIMEOUT,default=10s"`
	HeartbeatInterval time.Duration `env:"HEARTBEAT_INTERVAL,default=30s"`
	PresenceStaleness time.Duration `env:"PRESENCE_STALENESS,default=2m"`
	SinkTimeout       time.Duration `env:"SINK_TIMEOUT,default=2s"`
	PushTimeout       time.Duration `env:"PUSH_TIMEOUT,default=2s"`
	RestartInterval   time.Duration `env:"RESTART_INTERVAL,default=3s"`
	MetricInterval    time.Duration `env:"METRIC_INTERVAL,default=30s"`
	AuthTokenDuration time.Duration `env:"AUTH_TOKEN_DURATION,default=24h"`

	BufferSize        int `env:"BUFFER_SIZE,default=256"`
	NotificationLimit int `env:"NOTIFICATION_LIMIT,default=50"`

	ModerationWordsFile       string `env:"MODERATION_WORDS_FILE"`
	ModerationCharReplacement string `env:"MODERATION_CHARACTER_REPLACEMENT,default=*"`
}
