package viseme

import "strings"

// Class is an Oculus-style viseme class.
type Class int

const (
	Sil Class = iota
	PP
	FF
	TH
	DD
	KK
	CH
	SS
	NN
	RR
	AA
	E
	IH
	OH
	OU
	classCount
)

var classNames = [classCount]string{"sil", "PP", "FF", "TH", "DD", "kk", "CH", "SS", "nn", "RR", "aa", "E", "ih", "oh", "ou"}

func (c Class) String() string {
	if c < 0 || c >= classCount {
		return "invalid"
	}
	return classNames[c]
}

type shape struct {
	ch Channel
	w  float32
}

// Closed-lip consonants press the lips with the jaw shut; open vowels drop
// the jaw.
var classShapes = [classCount][]shape{
	Sil: nil,
	PP:  {{MouthClose, 0.8}, {MouthPressLeft, 0.5}, {MouthPressRight, 0.5}, {MouthPucker, 0.2}},
	FF:  {{MouthFunnel, 0.3}, {MouthRollLower, 0.5}, {MouthLowerDownLeft, 0.2}, {MouthLowerDownRight, 0.2}, {MouthUpperUpLeft, 0.15}, {MouthUpperUpRight, 0.15}},
	TH:  {{JawOpen, 0.15}, {MouthFunnel, 0.3}, {TongueOut, 0.4}},
	DD:  {{JawOpen, 0.2}, {MouthUpperUpLeft, 0.2}, {MouthUpperUpRight, 0.2}},
	KK:  {{JawOpen, 0.25}, {MouthStretchLeft, 0.2}, {MouthStretchRight, 0.2}},
	CH:  {{JawOpen, 0.1}, {MouthFunnel, 0.4}, {MouthPucker, 0.3}},
	SS:  {{JawOpen, 0.05}, {MouthStretchLeft, 0.3}, {MouthStretchRight, 0.3}},
	NN:  {{JawOpen, 0.15}, {MouthClose, 0.3}},
	RR:  {{JawOpen, 0.15}, {MouthPucker, 0.4}, {MouthFunnel, 0.2}},
	AA:  {{JawOpen, 0.6}, {MouthStretchLeft, 0.2}, {MouthStretchRight, 0.2}},
	E:   {{JawOpen, 0.3}, {MouthSmileLeft, 0.3}, {MouthSmileRight, 0.3}},
	IH:  {{JawOpen, 0.2}, {MouthSmileLeft, 0.4}, {MouthSmileRight, 0.4}},
	OH:  {{JawOpen, 0.4}, {MouthFunnel, 0.5}, {MouthPucker, 0.3}},
	OU:  {{JawOpen, 0.25}, {MouthPucker, 0.6}, {MouthFunnel, 0.4}},
}

// symbolClass covers single letters, digraphs, ARPAbet tokens (stress digits
// stripped) and the class names themselves.
var symbolClass = map[string]Class{
	"sil": Sil, "sp": Sil, "spn": Sil, "pau": Sil, "_": Sil, "": Sil,

	"p": PP, "b": PP, "m": PP, "pp": PP,
	"f": FF, "v": FF, "ff": FF,
	"th": TH, "dh": TH,
	"t": DD, "d": DD, "dd": DD, "dx": DD,
	"k": KK, "g": KK, "c": KK, "q": KK, "x": KK, "ng": KK, "kk": KK,
	"ch": CH, "jh": CH, "sh": CH, "zh": CH, "j": CH,
	"s": SS, "z": SS, "ss": SS,
	"n": NN, "l": NN, "nn": NN, "el": NN, "em": NN, "en": NN,
	"r": RR, "er": RR, "rr": RR, "axr": RR,
	"a": AA, "aa": AA, "ae": AA, "ah": AA, "ay": AA, "aw": AA, "ax": AA, "h": AA, "hh": AA,
	"e": E, "eh": E, "ey": E,
	"i": IH, "ih": IH, "iy": IH, "y": IH, "ix": IH,
	"o": OH, "oh": OH, "ao": OH, "ow": OH, "oy": OH,
	"u": OU, "ou": OU, "uh": OU, "uw": OU, "w": OU, "ux": OU,
}

// ClassOf maps a phoneme symbol to its viseme class. Unknown symbols map to
// Sil and contribute nothing.
func ClassOf(symbol string) Class {
	s := strings.ToLower(strings.TrimSpace(symbol))
	s = strings.TrimRight(s, "012")
	if c, ok := symbolClass[s]; ok {
		return c
	}
	return Sil
}

// IsSilence reports whether symbol drives no mouth shape.
func IsSilence(symbol string) bool {
	return ClassOf(symbol) == Sil
}

// ForPhoneme returns the target weights for one phoneme symbol.
func ForPhoneme(symbol string) Weights {
	var w Weights
	applyClass(&w, ClassOf(symbol), 1)
	return w
}

func applyClass(w *Weights, c Class, scale float32) {
	for _, s := range classShapes[c] {
		w.Add(s.ch, s.w*scale)
	}
}
