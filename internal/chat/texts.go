package chat

import "fmt"

// User-facing texts. The bot speaks Brazilian Portuguese.
const (
	TextUnauthorized = "🚫 Infelizmente esse chat não está autorizado! Utilize o comando /autorizar (senha) para autoriza-lo!"

	TextPhotoReceived = "📥 Foto recebida!"
	TextPDFReceived   = "📥 PDF recebido!"
	TextRendering     = "⏳ Gerando PDF! Aguarde..."
	TextSaving        = "⏳ Salvando PDF! Aguarde..."
	TextRenderFailed  = "❌ Erro ao gerar PDF! Por favor tente novamente."
	TextDownloadFail  = "❌ Erro no download do arquivo!"
	TextPersistFailed = "❌ Erro ao salvar arquivo! Por favor tente novamente."
	TextSendFailed    = "❌ Erro ao enviar arquivo! Por favor tente novamente."
	TextPrintPrompt   = "Deseja imprimir o PDF?"

	ButtonPrint  = "🖨️ Imprimir"
	ButtonCancel = "❌ Não imprimir"
	ButtonInfo   = "ℹ️ Informações"

	TextDocumentNotFound = "❌ O arquivo não foi encontrado no banco de dados! Por favor reenvie-o para tentar imprimir!"
	TextPreparingPrint   = "🖨️ Preparando impressão..."
	TextPrintFailed      = "❌ Erro ao imprimir arquivo! Por favor reenvie-o para tentar novamente!"
	TextPrinted          = "✅ O arquivo foi para impressão com sucesso!"
	TextCancelPurged     = "🗑️ Ok! O arquivo não será impresso e já foi deletado do banco de dados!"
	TextRecordNotFound   = "❌ O arquivo de informações não foi encontrado, por favor envie o arquivo novamente!"
	TextActionFailed     = "❌ Não foi possível concluir a ação! Por favor tente novamente."

	TextAlreadyAuthorized = "👍 Esse canal já foi autorizado!"
	TextAuthorizeUsage    = "❌ Você deve informar uma senha de liberação junto com o /autorizar !"
	TextAuthorized        = "✅ Parabéns! Esse canal foi autorizado!"
	TextWrongPassword     = "❌ Senha incorreta! Por favor tente novamente!"
	TextAuthorizeFailed   = "❌ Não foi possível autorizar o canal agora! Por favor tente novamente."
)

// ButtonPrintCopy labels the button printing copy number n.
func ButtonPrintCopy(n int) string {
	return fmt.Sprintf("🖨️ Imprimir %dª cópia", n)
}

// TextCancelRetained reports a cancel on a submission already printed.
func TextCancelRetained(timesPrinted int) string {
	return fmt.Sprintf("👍 Ok! O arquivo não será impresso novamente! Numero de cópias impressas: %d", timesPrinted)
}

// DocumentCaption captions a stored document sent back to its submitter.
func DocumentCaption(id string) string {
	return "ID: " + id
}
