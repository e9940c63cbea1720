/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>

*/
package main

import "github.com/Zapuzallp/CASUITE-sub000/cmd"

func main() {
	cmd.Execute()
}
