package main

import "github.com/wtfashwin/Quiz-App/cmd"

func main() {
	cmd.Execute()
}
