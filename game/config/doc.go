// Package config provides environment configuration for the snake party
// server.
//
// The config package handles:
//   - Board dimensions and initial snake length
//   - Game code length and the create-loop retry cap
//   - Player name limits
//   - Optional sinks (history database, NATS, OpenTelemetry)
//
// Configuration Source:
//
// Values are read from the process environment. main.go loads a .env file
// first, so either source works. Every field has a default, so an empty
// environment yields a runnable server with history, events and tracing
// disabled.
//
// Variables:
//
//	SNAKE_BOARD_WIDTH       board width in cells (30)
//	SNAKE_BOARD_HEIGHT      board height in cells (16)
//	SNAKE_LENGTH            initial snake length (5)
//	GAME_CODE_LENGTH        characters per game code (4)
//	GAME_CODE_MAX_ATTEMPTS  create-loop cap, 0 retries forever (0)
//	PLAYER_NAME_MAX_LENGTH  longest accepted player name in runes (24)
//	HISTORY_DB_PATH         SQLite file for finished games, empty disables
//	NATS_URL                NATS server for lifecycle events, empty disables
//	NATS_SUBJECT_PREFIX     subject prefix for events (snake)
//	OTEL_ENDPOINT           OTLP/HTTP collector endpoint, empty disables
//	OTEL_SERVICE_NAME       service name reported to the collector
//
// Usage:
//
//	cfg, err := config.Load()
//	if err != nil {
//		log.Fatal(err)
//	}
//	factory := snake.NewFactory(cfg.BoardWidth, cfg.BoardHeight, cfg.SnakeLength, nil)
package config
