package core

import "testing"

func TestScaleResolveWH(t *testing.T) {
	tests := []struct {
		name       string
		scale      Scale
		srcW, srcH int
		wantW      int
		wantH      int
	}{
		{"full", Scale{Mode: ScaleFull}, 800, 600, 800, 600},
		{"percent half", Scale{Mode: ScalePercent, Percent: 0.5}, 800, 600, 400, 300},
		{"percent one is identity", Scale{Mode: ScalePercent, Percent: 1.0}, 800, 600, 800, 600},
		{"fit width", Scale{Mode: ScaleFitWidth, Width: 400}, 800, 600, 400, 300},
		{"fit height", Scale{Mode: ScaleFitHeight, Height: 150}, 800, 600, 200, 150},
		{"fit inside landscape box", Scale{Mode: ScaleFitInside, Width: 200, Height: 200}, 800, 400, 200, 100},
		{"non-aspect fill", Scale{Mode: ScaleNonAspectFill, Width: 300, Height: 100}, 800, 600, 300, 100},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			w, h := tc.scale.ResolveWH(tc.srcW, tc.srcH)
			if w != tc.wantW || h != tc.wantH {
				t.Errorf("ResolveWH() = %d,%d; want %d,%d", w, h, tc.wantW, tc.wantH)
			}
		})
	}
}

func TestScaleIsIdentity(t *testing.T) {
	if !(Scale{Mode: ScaleFull}).IsIdentity() {
		t.Error("full scale should be identity")
	}
	if !(Scale{Mode: ScalePercent, Percent: 1.0}).IsIdentity() {
		t.Error("percent=1.0 should be identity")
	}
	if (Scale{Mode: ScalePercent, Percent: 0.99}).IsIdentity() {
		t.Error("percent=0.99 should not be identity")
	}
}

func TestCropRectClipsToSource(t *testing.T) {
	c := Crop{Mode: CropPixel, X: -10, Y: -10, Width: 50, Height: 50}
	x, y, w, h := c.Rect(30, 30)
	if x != 0 || y != 0 {
		t.Errorf("expected clip to origin, got x=%d y=%d", x, y)
	}
	if w != 30 || h != 30 {
		t.Errorf("expected clipped w,h to source bounds, got %d,%d", w, h)
	}
}

func TestCropSquareCenter(t *testing.T) {
	c := Crop{Mode: CropSquareCenter}
	x, y, w, h := c.Rect(800, 600)
	if w != 600 || h != 600 {
		t.Fatalf("expected 600x600 square, got %dx%d", w, h)
	}
	if x != 100 || y != 0 {
		t.Errorf("expected centered at x=100,y=0, got x=%d,y=%d", x, y)
	}
}

func TestNormalizeDropsIdentityOpsAndAppendsEncode(t *testing.T) {
	list := Normalize([]Operation{
		{Kind: OpCrop, Crop: Crop{Mode: CropFull}},
		{Kind: OpScale, Scale: Scale{Mode: ScaleFull}},
		{Kind: OpRotate, RotateDegrees: 0},
	}, FormatJPEG)

	if len(list.Ops) != 1 {
		t.Fatalf("expected only the terminal encode to survive, got %d ops", len(list.Ops))
	}
	enc, ok := list.Encode()
	if !ok || enc.EncodeFormat != FormatJPEG {
		t.Errorf("expected default-format terminal encode, got %+v ok=%v", enc, ok)
	}
}

func TestNormalizeOrdersAndCollapsesDuplicates(t *testing.T) {
	list := Normalize([]Operation{
		{Kind: OpSharpen, SharpenAmount: 0.5},
		{Kind: OpScale, Scale: Scale{Mode: ScalePercent, Percent: 0.5}},
		{Kind: OpCrop, Crop: Crop{Mode: CropSquareCenter}},
		{Kind: OpScale, Scale: Scale{Mode: ScalePercent, Percent: 0.25}}, // last scale wins
		{Kind: OpRotate, RotateDegrees: 90},
	}, FormatPNG)

	wantKinds := []OpKind{OpCrop, OpScale, OpRotate, OpSharpen, OpEncode}
	if len(list.Ops) != len(wantKinds) {
		t.Fatalf("got %d ops, want %d", len(list.Ops), len(wantKinds))
	}
	for i, k := range wantKinds {
		if list.Ops[i].Kind != k {
			t.Errorf("op[%d].Kind = %s, want %s", i, list.Ops[i].Kind, k)
		}
	}
	if list.Ops[1].Scale.Percent != 0.25 {
		t.Errorf("expected the later Scale to win, got percent=%g", list.Ops[1].Scale.Percent)
	}
}

func TestNormalizeRotateWrapsNegativeDegrees(t *testing.T) {
	list := Normalize([]Operation{{Kind: OpRotate, RotateDegrees: -90}}, FormatJPEG)
	rotate := list.Ops[0]
	if rotate.Kind != OpRotate || rotate.RotateDegrees != 270 {
		t.Errorf("expected -90 to normalize to 270, got %+v", rotate)
	}
}

func TestFingerprintStableAndSensitiveToOps(t *testing.T) {
	id := Identifier("sample.jpg")
	a := Normalize([]Operation{{Kind: OpScale, Scale: Scale{Mode: ScalePercent, Percent: 0.5}}}, FormatJPEG)
	b := Normalize([]Operation{{Kind: OpScale, Scale: Scale{Mode: ScalePercent, Percent: 0.5}}}, FormatJPEG)
	c := Normalize([]Operation{{Kind: OpScale, Scale: Scale{Mode: ScalePercent, Percent: 0.75}}}, FormatJPEG)

	fa := Fingerprint(id, a, nil)
	fb := Fingerprint(id, b, nil)
	fc := Fingerprint(id, c, nil)

	if fa != fb {
		t.Error("identical normalized op-lists must fingerprint equal")
	}
	if fa == fc {
		t.Error("differing scale percent must fingerprint differently")
	}
}

func TestFingerprintSensitiveToConfigSubset(t *testing.T) {
	id := Identifier("sample.jpg")
	list := Normalize(nil, FormatJPEG)
	fa := Fingerprint(id, list, []string{"limit_to_8_bits=true"})
	fb := Fingerprint(id, list, []string{"limit_to_8_bits=false"})
	if fa == fb {
		t.Error("differing config subset must fingerprint differently")
	}
}
