package main

import "transcribeflow/cmd"

func main() {
	cmd.Execute()
}
