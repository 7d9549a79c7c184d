package prompt

import (
	"strconv"
	"strings"

	"github.com/manifoldco/promptui"

	"github.com/marmos91/dittoblk/internal/bytesize"
)

// Input prompts for text input with an optional default value.
func Input(label string, defaultValue string) (string, error) {
	prompt := promptui.Prompt{
		Label:   label,
		Default: defaultValue,
	}

	result, err := prompt.Run()
	return result, wrapError(err)
}

// InputWithValidation prompts for input checked by validate on every
// keystroke.
func InputWithValidation(label, defaultValue string, validate func(string) error) (string, error) {
	prompt := promptui.Prompt{
		Label:    label,
		Default:  defaultValue,
		Validate: validate,
	}

	result, err := prompt.Run()
	return result, wrapError(err)
}

// InputSize prompts for a disk or cache size.
func InputSize(label string, defaultValue bytesize.ByteSize, sectorSize uint32) (bytesize.ByteSize, error) {
	result, err := InputWithValidation(label, defaultValue.String(), ValidateSize(sectorSize))
	if err != nil {
		return 0, err
	}
	return bytesize.ParseByteSize(result)
}

// InputPort prompts for a port number.
func InputPort(label string, defaultValue int) (int, error) {
	result, err := InputWithValidation(label, strconv.Itoa(defaultValue), ValidatePort)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(result))
}
