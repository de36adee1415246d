// Package snake provides the value types exchanged between the game catalog,
// game sessions and their callers.
//
// The snake package implements:
//   - Orientation parsing and step deltas
//   - Snake bodies and their initial placement on a board
//   - Food bites replaced wholesale by the tick driver
//   - Per-player movement state used by bulk tick updates
//
// Core Types:
//
// Snake is an ordered body (head first) plus the orientation it is heading.
// Food is the set of bites currently on the board. PlayerState pairs a player
// name with the snake computed for it by the tick driver.
//
// All types are plain values. Clone methods return deep copies so snapshots
// handed to readers never share backing arrays with session state.
//
// Usage:
//
//	s, err := snake.RandomSnake(snake.DefaultWidth, snake.DefaultHeight, snake.DefaultLength, snake.DefaultRand)
//	if err != nil {
//		log.Fatal(err)
//	}
//	head, _ := s.Head()
//
// Coordinates:
//
// The origin is the top-left corner of the board. X grows to the right and Y
// grows downwards, so moving "up" decrements Y.
package snake
