package desktop

import (
	"fmt"
	"strconv"
	"strings"
)

// Chord is a key press with optional modifiers, such as ctrl+shift+s.
type Chord struct {
	Modifiers []string
	Key       string
}

var modifierAliases = map[string]string{
	"ctrl":    "ctrl",
	"control": "ctrl",
	"alt":     "alt",
	"option":  "alt",
	"shift":   "shift",
	"win":     "super",
	"windows": "super",
	"super":   "super",
	"cmd":     "super",
	"command": "super",
	"meta":    "super",
}

var keyAliases = map[string]string{
	"return":     "enter",
	"esc":        "escape",
	"del":        "delete",
	"bksp":       "backspace",
	"back":       "backspace",
	"pgup":       "pageup",
	"page_up":    "pageup",
	"pgdn":       "pagedown",
	"page_down":  "pagedown",
	"arrowup":    "up",
	"arrowdown":  "down",
	"arrowleft":  "left",
	"arrowright": "right",
	"spacebar":   "space",
	"ins":        "insert",
}

// ParseChord splits "Ctrl+Shift+S" into canonical lower-case parts.
func ParseChord(s string) (Chord, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	if s == "" {
		return Chord{}, fmt.Errorf("empty key")
	}
	if s == "+" {
		return Chord{Key: "plus"}, nil
	}

	parts := strings.Split(s, "+")
	var c Chord
	for i, raw := range parts {
		p := strings.TrimSpace(raw)
		if p == "" {
			return Chord{}, fmt.Errorf("malformed key chord %q", s)
		}
		if i < len(parts)-1 {
			mod, ok := modifierAliases[p]
			if !ok {
				return Chord{}, fmt.Errorf("unknown modifier %q in %q", p, s)
			}
			c.Modifiers = append(c.Modifiers, mod)
			continue
		}
		if alias, ok := keyAliases[p]; ok {
			p = alias
		}
		c.Key = p
	}
	return c, nil
}

var xdotoolKeys = map[string]string{
	"enter":       "Return",
	"escape":      "Escape",
	"tab":         "Tab",
	"backspace":   "BackSpace",
	"delete":      "Delete",
	"insert":      "Insert",
	"space":       "space",
	"up":          "Up",
	"down":        "Down",
	"left":        "Left",
	"right":       "Right",
	"home":        "Home",
	"end":         "End",
	"pageup":      "Prior",
	"pagedown":    "Next",
	"capslock":    "Caps_Lock",
	"printscreen": "Print",
	"plus":        "plus",
	"minus":       "minus",
}

// XdotoolName renders the chord as an xdotool key argument.
func (c Chord) XdotoolName() string {
	key := c.Key
	if mapped, ok := xdotoolKeys[key]; ok {
		key = mapped
	} else if len(key) >= 2 && key[0] == 'f' && isDigits(key[1:]) {
		key = strings.ToUpper(key)
	}
	if len(c.Modifiers) == 0 {
		return key
	}
	return strings.Join(c.Modifiers, "+") + "+" + key
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}

var virtualKeys = map[string]uint16{
	"ctrl":        0x11,
	"alt":         0x12,
	"shift":       0x10,
	"super":       0x5B,
	"enter":       0x0D,
	"escape":      0x1B,
	"tab":         0x09,
	"backspace":   0x08,
	"delete":      0x2E,
	"insert":      0x2D,
	"space":       0x20,
	"up":          0x26,
	"down":        0x28,
	"left":        0x25,
	"right":       0x27,
	"home":        0x24,
	"end":         0x23,
	"pageup":      0x21,
	"pagedown":    0x22,
	"capslock":    0x14,
	"printscreen": 0x2C,
	"plus":        0xBB,
	"minus":       0xBD,
}

// VirtualKeys returns the Windows virtual-key codes for the chord, modifiers
// first.
func (c Chord) VirtualKeys() ([]uint16, error) {
	codes := make([]uint16, 0, len(c.Modifiers)+1)
	for _, m := range c.Modifiers {
		codes = append(codes, virtualKeys[m])
	}
	vk, err := virtualKey(c.Key)
	if err != nil {
		return nil, err
	}
	return append(codes, vk), nil
}

func virtualKey(key string) (uint16, error) {
	if vk, ok := virtualKeys[key]; ok {
		return vk, nil
	}
	if len(key) == 1 {
		ch := key[0]
		switch {
		case ch >= 'a' && ch <= 'z':
			return uint16(ch - 'a' + 'A'), nil
		case ch >= '0' && ch <= '9':
			return uint16(ch), nil
		}
	}
	if len(key) >= 2 && key[0] == 'f' && isDigits(key[1:]) {
		n, err := strconv.Atoi(key[1:])
		if err == nil && n >= 1 && n <= 24 {
			return uint16(0x70 + n - 1), nil
		}
	}
	return 0, fmt.Errorf("unsupported key %q", key)
}
