package console

import (
	"fmt"
	"os"

	"github.com/spf13/viper"
)

func Printf(format string, args ...any) {
	fmt.Printf(format, args...)
}

func Infof(format string, args ...any) {
	fmt.Printf(format+"\n", args...)
}

func Verbosef(format string, args ...any) {
	if viper.GetBool("verbose") {
		fmt.Printf(format+"\n", args...)
	}
}

func Fatalf(format string, args ...any) {
	fmt.Printf("Error: "+format+"\n", args...)
	os.Exit(1)
}

func AssertNoError(err error) {
	if err != nil {
		Fatalf("error: %v", err)
	}
}

func Assertf(cond bool, format string, args ...any) {
	if !cond {
		Fatalf(format, args...)
	}
}
