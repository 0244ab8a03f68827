package services

import (
	"bytes"
	"fmt"
	"image/color"
	"os"
	"strings"

	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"

	"github.com/yungbote/lectern-backend/internal/platform/logger"
)

// ChartRenderer draws report charts as PNG.
type ChartRenderer interface {
	LectureAccuracyPNG(lectures []LectureAccuracy) ([]byte, error)
}

type chartRenderer struct {
	log       *logger.Logger
	titleFace font.Face
	labelFace font.Face
}

// NewChartRenderer loads fontPath, or the bundled Go font when it is empty.
// Lecture titles in CJK need a font that covers them.
func NewChartRenderer(log *logger.Logger, fontPath string) (ChartRenderer, error) {
	serviceLog := log.With("service", "ChartRenderer")
	data := goregular.TTF
	if p := strings.TrimSpace(fontPath); p != "" {
		b, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("failed to read chart font: %w", err)
		}
		data = b
		serviceLog.Info("Loading chart font", "font", p)
	}
	parsed, err := truetype.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse TTF: %w", err)
	}
	return &chartRenderer{
		log:       serviceLog,
		titleFace: truetype.NewFace(parsed, &truetype.Options{Size: 20, DPI: 72, Hinting: font.HintingNone}),
		labelFace: truetype.NewFace(parsed, &truetype.Options{Size: 13, DPI: 72, Hinting: font.HintingNone}),
	}, nil
}

const (
	chartWidth   = 800
	chartHeight  = 480
	chartMargin  = 60
	chartBottom  = 110
	maxLabelRune = 12
)

var (
	barColor  = color.RGBA{R: 0x3b, G: 0x82, B: 0xf6, A: 0xff}
	axisColor = color.RGBA{R: 0x55, G: 0x55, B: 0x55, A: 0xff}
	gridColor = color.RGBA{R: 0xe5, G: 0xe7, B: 0xeb, A: 0xff}
)

// LectureAccuracyPNG draws one bar per lecture on a 0-100 scale.
func (cr *chartRenderer) LectureAccuracyPNG(lectures []LectureAccuracy) ([]byte, error) {
	dc := gg.NewContext(chartWidth, chartHeight)
	dc.SetColor(color.White)
	dc.Clear()

	plotW := float64(chartWidth - 2*chartMargin)
	plotH := float64(chartHeight - chartMargin - chartBottom)
	originX, originY := float64(chartMargin), float64(chartHeight-chartBottom)

	dc.SetFontFace(cr.titleFace)
	dc.SetColor(color.Black)
	dc.DrawStringAnchored("Accuracy by lecture (%)", chartWidth/2, chartMargin/2, 0.5, 0.5)

	dc.SetFontFace(cr.labelFace)
	for pct := 0; pct <= 100; pct += 20 {
		y := originY - plotH*float64(pct)/100
		dc.SetColor(gridColor)
		dc.SetLineWidth(1)
		dc.DrawLine(originX, y, originX+plotW, y)
		dc.Stroke()
		dc.SetColor(axisColor)
		dc.DrawStringAnchored(fmt.Sprintf("%d", pct), originX-8, y, 1, 0.5)
	}

	if len(lectures) == 0 {
		dc.SetColor(axisColor)
		dc.DrawStringAnchored("No answers yet", chartWidth/2, originY-plotH/2, 0.5, 0.5)
	} else {
		slot := plotW / float64(len(lectures))
		barW := slot * 0.6
		for i, l := range lectures {
			h := plotH * clampPercent(l.Accuracy) / 100
			x := originX + slot*float64(i) + (slot-barW)/2
			dc.SetColor(barColor)
			dc.DrawRectangle(x, originY-h, barW, h)
			dc.Fill()

			dc.SetColor(color.Black)
			dc.DrawStringAnchored(fmt.Sprintf("%.1f", l.Accuracy), x+barW/2, originY-h-10, 0.5, 0.5)

			dc.Push()
			dc.RotateAbout(gg.Radians(-35), x+barW/2, originY+12)
			dc.DrawStringAnchored(shortLabel(l.Title), x+barW/2, originY+12, 1, 0.5)
			dc.Pop()
		}
	}

	dc.SetColor(axisColor)
	dc.SetLineWidth(2)
	dc.DrawLine(originX, originY, originX+plotW, originY)
	dc.DrawLine(originX, originY, originX, originY-plotH)
	dc.Stroke()

	var buf bytes.Buffer
	if err := dc.EncodePNG(&buf); err != nil {
		return nil, fmt.Errorf("failed to encode PNG: %w", err)
	}
	return buf.Bytes(), nil
}

func clampPercent(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

func shortLabel(s string) string {
	r := []rune(strings.TrimSpace(s))
	if len(r) <= maxLabelRune {
		return string(r)
	}
	return string(r[:maxLabelRune-1]) + "…"
}
