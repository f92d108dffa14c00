package renderer

import (
	"bytes"
	"fmt"
	"time"

	"github.com/fogleman/gg"
	"github.com/go-pdf/fpdf"
	"github.com/pkg/errors"
	"golang.org/x/image/font/basicfont"
)

// CertificateData is everything printed on a certificate.
type CertificateData struct {
	CertificateNumber string
	HolderName        string
	CourseTitle       string
	IssuedAt          time.Time
	VerifyURL         string
}

// CertificatePDF renders an A4 landscape certificate: gg draws the frame artwork, fpdf lays out the text.
type CertificatePDF struct {
	Issuer string
}

func NewCertificatePDF(issuer string) *CertificatePDF {
	if issuer == "" {
		issuer = "LearnHub"
	}
	return &CertificatePDF{Issuer: issuer}
}

// A4 landscape in mm; the artwork is drawn at 4px per mm.
const (
	pageW = 297.0
	pageH = 210.0
	pxMM  = 4
)

func (r *CertificatePDF) Render(data CertificateData) ([]byte, error) {
	if data.CertificateNumber == "" {
		return nil, errors.New("certificate number is required")
	}

	var artwork bytes.Buffer
	if err := r.drawArtwork(&artwork, data.CertificateNumber); err != nil {
		return nil, errors.Wrap(err, "draw artwork")
	}

	pdf := fpdf.New("L", "mm", "A4", "")
	pdf.SetTitle("Certificate "+data.CertificateNumber, true)
	pdf.SetAuthor(r.Issuer, true)
	pdf.AddPage()

	opts := fpdf.ImageOptions{ImageType: "PNG"}
	pdf.RegisterImageOptionsReader("frame", opts, &artwork)
	pdf.ImageOptions("frame", 0, 0, pageW, pageH, false, opts, 0, "")

	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.SetTextColor(40, 40, 70)
	pdf.SetY(42)
	pdf.SetFont("Helvetica", "B", 30)
	pdf.CellFormat(0, 14, "Certificate of Completion", "", 1, "C", false, 0, "")

	pdf.Ln(6)
	pdf.SetFont("Helvetica", "", 14)
	pdf.CellFormat(0, 8, "This certifies that", "", 1, "C", false, 0, "")

	pdf.Ln(2)
	pdf.SetFont("Times", "BI", 28)
	pdf.CellFormat(0, 14, tr(data.HolderName), "", 1, "C", false, 0, "")

	pdf.Ln(2)
	pdf.SetFont("Helvetica", "", 14)
	pdf.CellFormat(0, 8, "has successfully completed the course", "", 1, "C", false, 0, "")

	pdf.Ln(2)
	pdf.SetFont("Helvetica", "B", 20)
	pdf.MultiCell(0, 10, tr(data.CourseTitle), "", "C", false)

	pdf.SetY(pageH - 48)
	pdf.SetFont("Helvetica", "", 11)
	pdf.CellFormat(0, 6, fmt.Sprintf("Issued on %s by %s", data.IssuedAt.Format("January 2, 2006"), tr(r.Issuer)), "", 1, "C", false, 0, "")
	pdf.CellFormat(0, 6, "Certificate No. "+data.CertificateNumber, "", 1, "C", false, 0, "")
	if data.VerifyURL != "" {
		pdf.SetFont("Helvetica", "", 9)
		pdf.CellFormat(0, 6, "Verify at "+data.VerifyURL, "", 1, "C", false, 0, data.VerifyURL)
	}

	var out bytes.Buffer
	if err := pdf.Output(&out); err != nil {
		return nil, errors.Wrap(err, "write pdf")
	}
	return out.Bytes(), nil
}

func (r *CertificatePDF) drawArtwork(buf *bytes.Buffer, number string) error {
	w, h := int(pageW*pxMM), int(pageH*pxMM)
	dc := gg.NewContext(w, h)

	dc.SetHexColor("#fdfbf5")
	dc.Clear()

	// double frame
	dc.SetHexColor("#2b2d5c")
	dc.SetLineWidth(10)
	dc.DrawRoundedRectangle(40, 40, float64(w)-80, float64(h)-80, 18)
	dc.Stroke()
	dc.SetHexColor("#c9a646")
	dc.SetLineWidth(3)
	dc.DrawRoundedRectangle(62, 62, float64(w)-124, float64(h)-124, 12)
	dc.Stroke()

	// seal, bottom right
	cx, cy := float64(w)-190, float64(h)-190
	dc.SetHexColor("#c9a646")
	dc.DrawCircle(cx, cy, 80)
	dc.Fill()
	dc.SetHexColor("#fdfbf5")
	dc.SetLineWidth(3)
	dc.DrawCircle(cx, cy, 66)
	dc.Stroke()

	dc.SetHexColor("#2b2d5c")
	dc.SetFontFace(basicfont.Face7x13)
	dc.DrawStringAnchored("VERIFIED", cx, cy-8, 0.5, 0.5)
	dc.DrawStringAnchored(shortNumber(number), cx, cy+10, 0.5, 0.5)

	return dc.EncodePNG(buf)
}

// shortNumber keeps the seal text inside the circle.
func shortNumber(number string) string {
	if len(number) <= 14 {
		return number
	}
	return number[:14]
}
