package config

const (
	defaultDataDir                = "~/.local/share/foundry"
	defaultLogDir                 = "~/.local/share/foundry/logs"
	defaultOllamaHost             = "http://localhost:11434"
	defaultGenerationModel        = "llama3:8b"
	defaultEmbeddingModel         = "mxbai-embed-large"
	defaultOllamaTimeoutSeconds   = 120
	defaultIngestorPollSeconds    = 3600
	defaultFetchTimeoutSeconds    = 30
	defaultUserAgent              = "Foundry-Knowledge-Ingestor/1.0"
	defaultProcessorPollSeconds   = 600
	defaultAnnealingThreshold     = 0.95
	defaultAPIBind                = "0.0.0.0:8000"
	defaultAPIDefaultSources      = 5
	defaultAPIRequestTimeout      = 300
	defaultAPIShutdownSeconds     = 10
	defaultMonitorIntervalSeconds = 10
	defaultStopGraceSeconds       = 5
	defaultLogFormat              = "console"
	defaultLogLevel               = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
		},
		Ollama: Ollama{
			Host:            defaultOllamaHost,
			GenerationModel: defaultGenerationModel,
			EmbeddingModel:  defaultEmbeddingModel,
			TimeoutSeconds:  defaultOllamaTimeoutSeconds,
		},
		Ingestor: Ingestor{
			PollIntervalSeconds: defaultIngestorPollSeconds,
			FetchTimeoutSeconds: defaultFetchTimeoutSeconds,
			UserAgent:           defaultUserAgent,
		},
		Processor: Processor{
			PollIntervalSeconds: defaultProcessorPollSeconds,
			AnnealingThreshold:  defaultAnnealingThreshold,
		},
		API: API{
			Bind:            defaultAPIBind,
			DefaultSources:  defaultAPIDefaultSources,
			RequestTimeout:  defaultAPIRequestTimeout,
			ShutdownSeconds: defaultAPIShutdownSeconds,
		},
		Supervisor: Supervisor{
			MonitorIntervalSeconds: defaultMonitorIntervalSeconds,
			StopGraceSeconds:       defaultStopGraceSeconds,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
