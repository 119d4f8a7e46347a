// gencode prints a redemption-style code, handy for poking the scanning
// endpoints by hand
package main

import (
	"fmt"
	"os"

	"github.com/perkhub/loyalty/internal/service/redemption"
)

func main() {
	code, err := redemption.NewCode()
	if err != nil {
		fmt.Printf("error while generating code: %v", err)
		os.Exit(1)
	}

	fmt.Println(code)
}
