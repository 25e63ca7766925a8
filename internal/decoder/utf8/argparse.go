package utf8

import (
	"fmt"

	"github.com/anjor/runelace/internal/constants"
	"github.com/anjor/runelace/internal/decoder"
	"github.com/anjor/runelace/internal/util/argparser"
)

func NewDecoder(args []string) (_ rldecoder.Decoder, _ rldecoder.InstanceConstants, initErrs []error) {

	if args == nil {
		initErrs = argparser.SubHelp(
			"Strict incremental UTF-8 decoder. A chunk ending partway through a\n"+
				"multi-byte character has its trailing 1 to 3 bytes withheld and joined\n"+
				"to the next chunk. Malformed input is a hard error: nothing is guessed,\n"+
				"skipped, or replaced. Takes no arguments.\n",
			nil,
		)
		return
	}

	if len(args) > 1 {
		initErrs = append(initErrs, fmt.Errorf("decoder takes no arguments"))
	}

	return New(), rldecoder.InstanceConstants{MaxCarry: constants.MaxCarryLen}, initErrs
}
