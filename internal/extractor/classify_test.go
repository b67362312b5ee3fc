package extractor

import "testing"

func TestClassify(t *testing.T) {
	cases := map[string]Category{
		"readme.txt":      CategoryText,
		"main.go":         CategoryCode,
		"photo.PNG":       CategoryImage,
		"movie.mkv":       CategoryVideo,
		"track.flac":      CategoryAudio,
		"manual.pdf":      CategoryPDF,
		"report.docx":     CategoryDocument,
		"budget.xlsx":     CategorySpreadsheet,
		"slides.pptx":     CategoryPresentation,
		"font.woff2":      CategoryFont,
		"data.csv":        CategorySpreadsheet,
		"clip.ogg":        CategoryVideo,
		"icon.avif":       CategoryImage,
		"deck.key":        CategoryPresentation,
		"legacy.eot":      CategoryFont,
		"archive.unknown": CategoryUnsupported,
		"noext":           CategoryUnsupported,
	}
	for name, want := range cases {
		if got := Classify(name); got != want {
			t.Errorf("Classify(%q) = %q, want %q", name, got, want)
		}
	}
}

func TestSniffMIME(t *testing.T) {
	png := []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}
	if got := SniffMIME(png); got != "image/png" {
		t.Errorf("SniffMIME(png header) = %q, want image/png", got)
	}
}
