package service

import (
	"bytes"
	"context"
	"html/template"

	"go.uber.org/zap"

	"github.com/yptunaskarya/perpus-api/internal/dto"
	appErrors "github.com/yptunaskarya/perpus-api/pkg/errors"
	"github.com/yptunaskarya/perpus-api/pkg/qrcode"
)

const receiptTemplate = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>Struk {{.ReceiptNumber}}</title>
<style>
body { font-family: monospace; width: 280px; margin: 0 auto; }
h1 { font-size: 14px; text-align: center; }
h2 { font-size: 12px; text-align: center; font-weight: normal; }
table { width: 100%; font-size: 11px; border-collapse: collapse; }
td { padding: 2px 0; vertical-align: top; }
.right { text-align: right; }
.center { text-align: center; }
hr { border: none; border-top: 1px dashed #000; }
img.qr { display: block; margin: 8px auto; width: 120px; height: 120px; }
</style>
</head>
<body>
<h1>{{.SchoolName}}</h1>
<h2>Perpustakaan</h2>
<hr>
<table>
<tr><td>No</td><td class="right">{{.ReceiptNumber}}</td></tr>
<tr><td>Tanggal</td><td class="right">{{.Date}}</td></tr>
<tr><td>Siswa</td><td class="right">{{.StudentName}}</td></tr>
<tr><td>NIS</td><td class="right">{{.StudentNIS}}</td></tr>
{{if .DueDate}}<tr><td>Jatuh tempo</td><td class="right">{{.DueDate}}</td></tr>{{end}}
</table>
<hr>
<table>
{{range .Items}}<tr><td>{{.Title}}</td><td class="right">{{.Code}}</td></tr>
{{end}}</table>
<hr>
{{if .TotalFine}}<table><tr><td>Denda</td><td class="right">Rp {{.TotalFine}}</td></tr></table>
<hr>
{{end}}<img class="qr" src="{{.QRDataURI}}" alt="{{.ReceiptNumber}}">
<p class="center">{{.OfficerName}}<br>{{.OfficerTitle}}</p>
</body>
</html>`

type receiptItem struct {
	Title string
	Code  string
}

type receiptData struct {
	SchoolName    string
	ReceiptNumber string
	Date          string
	DueDate       string
	StudentName   string
	StudentNIS    string
	OfficerName   string
	OfficerTitle  string
	TotalFine     int64
	Items         []receiptItem
	QRDataURI     template.URL
}

// ReceiptService renders printable borrow receipts with an embedded QR code that
// encodes the receipt number for later barcode lookups.
type ReceiptService struct {
	transactions *TransactionService
	qr           *qrcode.Generator
	tmpl         *template.Template
	logger       *zap.Logger
	schoolName   string
}

// NewReceiptService constructs a ReceiptService.
func NewReceiptService(transactions *TransactionService, qr *qrcode.Generator, logger *zap.Logger, schoolName string) *ReceiptService {
	if logger == nil {
		logger = zap.NewNop()
	}
	tmpl := template.Must(template.New("receipt").Parse(receiptTemplate))
	return &ReceiptService{transactions: transactions, qr: qr, tmpl: tmpl, logger: logger, schoolName: schoolName}
}

// Render produces the HTML receipt for one transaction.
func (s *ReceiptService) Render(ctx context.Context, transactionID string) ([]byte, error) {
	detail, err := s.transactions.Get(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	return s.render(detail)
}

// RenderByReceipt produces the HTML receipt looked up by receipt number.
func (s *ReceiptService) RenderByReceipt(ctx context.Context, receiptNumber string) ([]byte, error) {
	detail, err := s.transactions.GetByReceipt(ctx, receiptNumber)
	if err != nil {
		return nil, err
	}
	return s.render(detail)
}

func (s *ReceiptService) render(detail *dto.TransactionResponse) ([]byte, error) {
	tx := detail.Transaction

	uri, err := s.qr.DataURI(tx.ReceiptNumber)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render qr code")
	}

	data := receiptData{
		SchoolName:    s.schoolName,
		ReceiptNumber: tx.ReceiptNumber,
		Date:          tx.BorrowDate.Format("02-01-2006 15:04"),
		OfficerName:   tx.OfficerName,
		OfficerTitle:  tx.OfficerTitle,
		TotalFine:     tx.TotalFine,
		QRDataURI:     template.URL(uri),
	}
	if tx.DueDate != nil {
		data.DueDate = tx.DueDate.Format("02-01-2006")
	}
	if tx.StudentName != nil {
		data.StudentName = *tx.StudentName
	}
	if tx.StudentNIS != nil {
		data.StudentNIS = *tx.StudentNIS
	}
	for _, item := range detail.Items {
		entry := receiptItem{}
		if item.BookTitle != nil {
			entry.Title = *item.BookTitle
		}
		if item.UniqueCode != nil {
			entry.Code = *item.UniqueCode
		}
		data.Items = append(data.Items, entry)
	}

	var buf bytes.Buffer
	if err := s.tmpl.Execute(&buf, data); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render receipt")
	}
	return buf.Bytes(), nil
}
