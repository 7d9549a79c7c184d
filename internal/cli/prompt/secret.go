package prompt

import "github.com/manifoldco/promptui"

// Secret prompts for a value that must not be echoed, such as an S3 secret
// access key. An empty answer is allowed and means "use the SDK credential
// chain".
func Secret(label string) (string, error) {
	prompt := promptui.Prompt{
		Label: label,
		Mask:  '*',
	}

	result, err := prompt.Run()
	return result, wrapError(err)
}
