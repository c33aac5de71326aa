package status

import "sync"

var (
	success = sev(SeveritySuccess)
	failed  = sev(SeverityFailed)
	pending = sev(SeverityPending)
	invalid = sev(SeverityInvalid)
)

func sev(value Severity) *Severity { return &value }

const (
	adviceToCheck  = "Use advice request to check status"
	adviceToVerify = "Use advice request to verify"
	contactPLN     = "Contact PLN customer service"
)

// Codes the processor returns when a payment's final state is unknown.
var ambiguousCodes = []string{"0068", "0168", "0187"}

func defaultEntries() []Entry {
	return []Entry{
		{Code: "0000", Description: "Inquiry / Payment / Advice sukses / Status Biller - Up", Severity: SeveritySuccess,
			Inquiry: success, Payment: success, Advice: success, UserMessage: "Transaction completed successfully"},
		{Code: "0004", Description: "Error lain-lain", Severity: SeverityFailed,
			Inquiry: failed, Payment: failed, Advice: pending, UserMessage: "System error occurred, please try again later"},
		{Code: "0005", Description: "Error lain-lain", Severity: SeverityFailed,
			Inquiry: failed, Payment: failed, Advice: pending, UserMessage: "System error occurred, please try again later"},
		{Code: "0014", Description: "Nomor Pelanggan tidak ditemukan", Severity: SeverityFailed,
			Inquiry: failed, UserMessage: "Customer number not found, please check and try again"},
		{Code: "0015", Description: "Tagihan tidak tersedia", Severity: SeverityFailed,
			Inquiry: failed, UserMessage: "No bills available for this customer"},
		{Code: "0016", Description: "KONSUMEN IDPEL DIBLOKIR HUBUNGI PLN", Severity: SeverityFailed,
			Inquiry: failed, UserMessage: "Customer account is blocked, please contact PLN",
			Action: ActionContactBiller, ActionDetail: contactPLN},
		{Code: "0047", Description: "Total KWH melebihi batas maksimum", Severity: SeverityFailed,
			Payment: failed, Advice: failed, UserMessage: "Total KWH exceeds maximum limit"},
		{Code: "0068", Description: "Timeout", Severity: SeverityPending,
			Inquiry: failed, Payment: pending, Advice: pending, UserMessage: "Request timeout, please check transaction status",
			Action: ActionUseAdvice, ActionDetail: adviceToCheck},
		{Code: "0077", Description: "KONSUMEN IDPEL DIBLOKIR HUBUNGI PLN", Severity: SeverityFailed,
			Inquiry: failed, UserMessage: "Customer account is blocked, please contact PLN",
			Action: ActionContactBiller, ActionDetail: contactPLN},
		{Code: "0083", Description: "Tagihan hanya bisa dibayar di counter biller", Severity: SeverityFailed,
			Inquiry: failed, UserMessage: "This bill can only be paid at biller counter"},
		{Code: "0088", Description: "Tagihan sudah lunas", Severity: SeverityFailed,
			Inquiry: failed, Payment: failed, Advice: pending, UserMessage: "Bill has already been paid"},
		{Code: "0090", Description: "Cut off", Severity: SeverityPending,
			Inquiry: failed, Payment: failed, Advice: pending, UserMessage: "Service is temporarily unavailable due to cut off"},
		{Code: "0098", Description: "Transaksi Gagal", Severity: SeverityFailed,
			Payment: failed, Advice: failed, UserMessage: "Transaction failed"},
		{Code: "0104", Description: "Gagal generate SessionId", Severity: SeverityFailed,
			Inquiry: failed, UserMessage: "Failed to generate session ID, please try again"},
		{Code: "0105", Description: "Internal MKM bermasalah", Severity: SeverityPending,
			Inquiry: failed, Payment: failed, Advice: pending, UserMessage: "Internal system error, please try again later"},
		{Code: "0112", Description: "Parameter payment tidak sesuai dengan hasil inquiry", Severity: SeverityFailed,
			Payment: failed, UserMessage: "Payment parameters do not match inquiry results"},
		{Code: "0115", Description: "Parameter tidak lengkap", Severity: SeverityInvalid,
			Inquiry: failed, Payment: failed, Advice: invalid, UserMessage: "Incomplete parameters provided"},
		{Code: "0168", Description: "Koneksi ke Biller timeout / Status Biller - Slow", Severity: SeverityPending,
			Inquiry: failed, Payment: pending, Advice: pending, UserMessage: "Biller connection timeout, please check status later",
			Action: ActionUseAdvice, ActionDetail: adviceToCheck},
		{Code: "0169", Description: "Status Biller - Down", Severity: SeverityPending,
			Inquiry: failed, Payment: failed, Advice: pending, UserMessage: "Biller service is currently down"},
		{Code: "0170", Description: "Kode produk tidak dikenal", Severity: SeverityInvalid,
			Inquiry: failed, Payment: failed, Advice: invalid, UserMessage: "Unknown product code"},
		{Code: "0171", Description: "Client ID tidak terdaftar", Severity: SeverityInvalid,
			Inquiry: failed, Payment: failed, Advice: invalid, UserMessage: "Client ID is not registered"},
		{Code: "0172", Description: "Saldo tidak mencukupi", Severity: SeverityFailed,
			Payment: failed, UserMessage: "Insufficient balance"},
		{Code: "0176", Description: "Transaksi Ditolak", Severity: SeverityFailed,
			Payment: failed, UserMessage: "Transaction rejected"},
		{Code: "0180", Description: "Server sedang cut-off, tidak dapat payment saat ini", Severity: SeverityPending,
			Inquiry: failed, Payment: failed, Advice: pending, UserMessage: "Server is in cut-off mode, payment not available"},
		{Code: "0187", Description: "Pembayaran sudah dilakukan sebelumnya, harap cek dengan melakukan advice", Severity: SeverityInvalid,
			Payment: invalid, UserMessage: "Payment already processed, please check with advice",
			Action: ActionUseAdvice, ActionDetail: adviceToVerify},
		{Code: "0192", Description: "SessionId tidak ditemukan", Severity: SeverityFailed,
			Payment: failed, Advice: failed, UserMessage: "Session ID not found, please start with inquiry"},
		{Code: "0194", Description: "Transaksi bermasalah dan telah dibatalkan secara otomatis", Severity: SeverityFailed,
			Advice: failed, UserMessage: "Transaction was automatically cancelled, please retry payment"},
	}
}

var defaultTable = sync.OnceValue(func() *Table {
	table, err := NewTable(defaultEntries()...)
	if err != nil {
		panic(err)
	}
	return table.WithAmbiguous(ambiguousCodes...)
})

// Default returns the processor status table. It is built once and shared.
func Default() *Table {
	return defaultTable()
}
