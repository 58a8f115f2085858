package colors

import (
	"image/color"
	"testing"
)

func TestParseHex(t *testing.T) {
	tests := []struct {
		in      string
		want    RGB
		wantErr bool
	}{
		{"#8BA4E8", RGB{0x8B, 0xA4, 0xE8}, false},
		{"e8a4c8", RGB{0xE8, 0xA4, 0xC8}, false},
		{"#fff", RGB{}, true},
		{"#zzzzzz", RGB{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseHex(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
	if got := (RGB{0x8B, 0xA4, 0xE8}).Hex(); got != "#8BA4E8" {
		t.Errorf("Hex() = %q", got)
	}
}

func TestGradientEndpoints(t *testing.T) {
	start := MustHex("#8BA4E8")
	end := MustHex("#E8A4C8")
	grad := Gradient(start, end, 8)
	if len(grad) != 8 {
		t.Fatalf("len = %d", len(grad))
	}
	if Distance(grad[0], start) > 3 {
		t.Errorf("first step %v too far from %v", grad[0], start)
	}
	if Distance(grad[7], end) > 3 {
		t.Errorf("last step %v too far from %v", grad[7], end)
	}
}

func TestMultiGradientLength(t *testing.T) {
	stops := []RGB{MustHex("#000000"), MustHex("#FF0000"), MustHex("#FFFFFF")}
	for _, steps := range []int{2, 3, 5, 10, 33} {
		grad := MultiGradient(stops, steps)
		if len(grad) != steps {
			t.Errorf("steps=%d: len = %d", steps, len(grad))
			continue
		}
		if Distance(grad[0], stops[0]) > 3 || Distance(grad[steps-1], stops[2]) > 3 {
			t.Errorf("steps=%d: endpoints %v %v", steps, grad[0], grad[steps-1])
		}
	}
	if mid := MultiGradient(stops, 5)[2]; Distance(mid, stops[1]) > 3 {
		t.Errorf("middle of 5 steps = %v, want the middle stop", mid)
	}
	if got := MultiGradient(stops[:1], 4); len(got) != 1 || got[0] != stops[0] {
		t.Errorf("single stop = %v", got)
	}
}

func TestSmoothnessPrefersCloseColors(t *testing.T) {
	near := Smoothness(MustHex("#8BA4E8"), MustHex("#B8A8E8"), 20)
	far := Smoothness(MustHex("#000000"), MustHex("#FFFF00"), 20)
	if near >= far {
		t.Errorf("near %.1f should be smoother than far %.1f", near, far)
	}
}

func TestLightnessOrdering(t *testing.T) {
	if Lightness(MustHex("#101010")) >= Lightness(MustHex("#F0F0F0")) {
		t.Error("dark color should have lower lightness")
	}
}

func TestMixAndRGBA(t *testing.T) {
	mid := Mix(RGB{0, 0, 0}, RGB{200, 100, 50}, 0.5)
	if mid != (RGB{100, 50, 25}) {
		t.Errorf("Mix = %v", mid)
	}
	got := RGB{200, 100, 50}.RGBA(255)
	if got != (color.RGBA{200, 100, 50, 255}) {
		t.Errorf("RGBA = %v", got)
	}
	if back := FromColor(got); back != (RGB{200, 100, 50}) {
		t.Errorf("FromColor = %v", back)
	}
}

func TestHSV(t *testing.T) {
	h, s, v := RGB{255, 0, 0}.HSV()
	if h != 0 || s != 1 || v != 1 {
		t.Errorf("red HSV = %v %v %v", h, s, v)
	}
	_, s, _ = RGB{128, 128, 128}.HSV()
	if s != 0 {
		t.Errorf("gray saturation = %v", s)
	}
}

func TestFormatTime(t *testing.T) {
	if got := FormatTime(125.7); got != "2:05" {
		t.Errorf("FormatTime = %q", got)
	}
	if got := FormatTime(-1); got != "0:00" {
		t.Errorf("FormatTime(-1) = %q", got)
	}
}
