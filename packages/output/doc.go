// Package output formats responses, run progress and history entries
// for the terminal. Colors go through fatih/color and honor --no-color.
package output
