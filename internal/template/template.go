// Package template renders an analogy quadruple (a, b, c, d) into a natural
// sentence expressing "a is to b as c is to d". The slot order is fixed; word
// reordering is the caller's business.
package template

import "fmt"

// Kind names a sentence form.
type Kind string

const (
	IsToAs     Kind = "is-to-as"
	IsToWhat   Kind = "is-to-what"
	RelSame    Kind = "rel-same"
	WhatIsTo   Kind = "what-is-to"
	SheToAs    Kind = "she-to-as"
	AsWhatSame Kind = "as-what-same"
)

// Kinds returns every template kind in a stable order.
func Kinds() []Kind {
	return []Kind{IsToAs, IsToWhat, RelSame, WhatIsTo, SheToAs, AsWhatSame}
}

// Parse validates a template name.
func Parse(s string) (Kind, error) {
	k := Kind(s)
	switch k {
	case IsToAs, IsToWhat, RelSame, WhatIsTo, SheToAs, AsWhatSame:
		return k, nil
	}
	return "", fmt.Errorf("template: unknown kind %q", s)
}

// Render produces the sentence for kind with the four words in slot order.
func Render(kind Kind, words [4]string) (string, error) {
	a, b, c, d := words[0], words[1], words[2], words[3]
	switch kind {
	case IsToAs:
		return fmt.Sprintf("%s is to %s as %s is to %s", a, b, c, d), nil
	case IsToWhat:
		return fmt.Sprintf("%s is to %s what %s is to %s", a, b, c, d), nil
	case RelSame:
		return fmt.Sprintf("The relation between %s and %s is the same as the relation between %s and %s", a, b, c, d), nil
	case WhatIsTo:
		return fmt.Sprintf("What %s is to %s, %s is to %s", a, b, c, d), nil
	case SheToAs:
		return fmt.Sprintf("She explained to him that %s is to %s as %s is to %s.", a, b, c, d), nil
	case AsWhatSame:
		return fmt.Sprintf("As I explained earlier, what %s is to %s is essentially the same as what %s is to %s.", a, b, c, d), nil
	}
	return "", fmt.Errorf("template: unknown kind %q", kind)
}
