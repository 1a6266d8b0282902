package main

import (
	"fmt"
	"io"

	"github.com/fatih/color"
)

// Logo columns, one per letter.
var banner = [][]string{
	{"        ", " _ ", "       ", " _     ", "       ", "     ", "       ", "           "},
	{"   __ _ ", "| |", "  ___  ", "| |__  ", "  __ _ ", "  ___", "  __ _ ", " _ __ ___  "},
	{"  / _` |", "| |", " / _ \\ ", "| '_ \\ ", " / _` |", " / __", " / _` |", "| '_ ` _ \\ "},
	{" | (_| |", "| |", "| (_) |", "| | | |", "| (_| |", "| (__", "| (_| |", "| | | | | |"},
	{"  \\__,_|", "|_|", " \\___/ ", "|_| |_|", " \\__,_|", " \\___", " \\__,_|", "|_| |_| |_|"},
}

// printBanner writes the colored "alohacam" logo, one color per letter.
func printBanner(w io.Writer) {
	r := color.New(color.FgRed)
	y := color.New(color.FgYellow)
	b := color.New(color.FgCyan)
	palette := []*color.Color{r, y, b, y, r, b, r, y}

	for _, row := range banner {
		for i, s := range row {
			palette[i].Fprint(w, s)
		}
		fmt.Fprintln(w)
	}
	fmt.Fprintln(w)
}
