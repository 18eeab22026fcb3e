package schema

// Layout names as used by the catalog's sub-kinds.
const (
	LayoutStatement          = "statement"
	LayoutRegistry           = "registry"
	LayoutSecurities         = "securities"
	LayoutGeneral            = "general"
	LayoutActivity           = "activity"
	LayoutRiskFactor         = "risk_factor"
	LayoutShareholder        = "shareholder"
	LayoutAdministrator      = "administrator"
	LayoutCapitalIncrease    = "capital_increase"
	LayoutIPEDocument        = "ipe_document"
	LayoutVLMODocument       = "vlmo_document"
	LayoutVLMOMovement       = "vlmo_movement"
	LayoutDividend           = "dividend"
	LayoutCapitalComposition = "capital_composition"
	LayoutCorporateEvent     = "corporate_event"
	LayoutIssuance           = "issuance"
)

// required column, non-null values
func must(canonical string, t Type, aliases ...string) Descriptor {
	return Descriptor{Canonical: canonical, Aliases: aliases, Type: t, Required: true}
}

// required column, null values allowed
func present(canonical string, t Type, aliases ...string) Descriptor {
	return Descriptor{Canonical: canonical, Aliases: aliases, Type: t, Required: true, Nullable: true}
}

// optional column
func opt(canonical string, t Type, aliases ...string) Descriptor {
	return Descriptor{Canonical: canonical, Aliases: aliases, Type: t, Nullable: true}
}

var (
	cnpjCIA  = must(CNPJ, TaxID, "CNPJ_CIA", "CNPJ_Companhia", "CNPJ")
	refDate  = must(RefDate, Date, "DT_REFER", "Data_Referencia")
	version  = present(Version, Integer, "VERSAO", "Versao")
	cvmCode  = opt(CVMCode, Integer, "CD_CVM", "CD_CIA", "Codigo_CVM")
	compName = opt(CompanyName, Text, "DENOM_CIA", "Nome_Companhia", "Nome_Empresarial")
)

// statement lines of the annual and quarterly forms
var statementLayout = []Descriptor{
	cnpjCIA,
	compName,
	present(CVMCode, Integer, "CD_CVM", "CD_CIA"),
	must(Version, Integer, "VERSAO"),
	must(RefDate, Date, "DT_REFER"),
	opt(FiscalYearStart, Date, "DT_INI_EXERC"),
	must(FiscalYearEnd, Date, "DT_FIM_EXERC"),
	must(FiscalOrderField, FiscalOrder, "ORDEM_EXERC"),
	must(AccountCode, Text, "CD_CONTA"),
	present(AccountDescription, Text, "DS_CONTA"),
	must(Value, Decimal, "VL_CONTA"),
	opt(Currency, Text, "MOEDA"),
	opt(CurrencyScale, Text, "ESCALA_MOEDA"),
	opt(IsFixedAccount, Boolean, "ST_CONTA_FIXA"),
	opt(ColumnLabel, Text, "COLUNA_DF"),
	opt(StatementGroup, Text, "GRUPO_DFP", "GRUPO_ITR"),
}

var registryLayout = []Descriptor{
	must(CNPJ, TaxID, "CNPJ_CIA"),
	must(CompanyName, Text, "DENOM_SOCIAL"),
	opt(TradeName, Text, "DENOM_COMERC"),
	must(CVMCode, Integer, "CD_CVM"),
	opt(Sector, Text, "SETOR_ATIV"),
	must(StatusField, Status, "SIT"),
	opt(RegistrationDate, Date, "DT_REG"),
	opt(CancelDate, Date, "DT_CANCEL"),
	opt(Category, Text, "CATEG_REG"),
	opt(Website, Text, "PAGINA_WEB", "SITE"),
}

var securitiesLayout = []Descriptor{
	cnpjCIA,
	present(Ticker, Text, "Codigo_Negociacao"),
	opt(Market, Text, "Mercado", "Segmento"),
	opt(SecurityType, Text, "Valor_Mobiliario"),
	opt(RefDate, Date, "Data_Referencia"),
	compName,
}

var generalLayout = []Descriptor{
	cnpjCIA,
	opt(Website, Text, "Pagina_Web", "Pagina_Web_Emissor"),
	cvmCode,
	compName,
	opt(RefDate, Date, "Data_Referencia"),
}

var activityLayout = []Descriptor{
	cnpjCIA,
	refDate,
	opt(Version, Integer, "Versao"),
	must(ActivityDescription, Text, "Descricao_Atividades_Emissor", "Descricao_Atividade"),
}

var riskFactorLayout = []Descriptor{
	cnpjCIA,
	refDate,
	opt(Version, Integer, "Versao"),
	opt(RiskType, Text, "Tipo_Fator_Risco"),
	must(Description, Text, "Descricao_Fator_Risco"),
	opt(Mitigation, Text, "Descricao_Medidas_Mitigacao_Risco"),
}

var shareholderLayout = []Descriptor{
	cnpjCIA,
	refDate,
	opt(Version, Integer, "Versao"),
	must(Name, Text, "Acionista", "Nome_Acionista"),
	opt(PersonTypeField, PersonType, "Tipo_Pessoa_Acionista", "Tipo_Pessoa"),
	opt(DocumentField, Document, "CPF_CNPJ_Acionista", "CPF_CNPJ"),
	opt(IsController, Boolean, "Acionista_Controlador"),
	opt(PctCommon, Decimal, "Percentual_Acao_Ordinaria_Circulacao", "Percentual_Acao_Ordinaria"),
	opt(PctPreferred, Decimal, "Percentual_Acao_Preferencial_Circulacao", "Percentual_Acao_Preferencial"),
	opt(PctTotal, Decimal, "Percentual_Total_Acoes_Circulacao", "Percentual_Total_Acoes"),
}

var administratorLayout = []Descriptor{
	cnpjCIA,
	refDate,
	opt(Version, Integer, "Versao"),
	must(Name, Text, "Nome", "Nome_Administrador", "Nome_Membro"),
	opt(Position, Text, "Cargo_Eletivo_Ocupado", "Cargo"),
	opt(Role, Text, "Orgao_Administracao", "Complemento_Cargo_Eletivo_Ocupado"),
	opt(ElectionDate, Date, "Data_Eleicao"),
	opt(TermOfOffice, Text, "Prazo_Mandato"),
	opt(Biography, Text, "Experiencia_Profissional", "Descricao_Experiencia_Profissional"),
}

var capitalIncreaseLayout = []Descriptor{
	cnpjCIA,
	refDate,
	opt(Version, Integer, "Versao"),
	must(ApprovalDate, Date, "Data_Deliberacao", "Data_Aprovacao"),
	opt(EventType, Text, "Tipo_Aumento", "Forma_Aumento"),
	opt(Value, Decimal, "Valor_Total_Emissao", "Valor_Aumento"),
	opt(QuantityCommon, Integer, "Quantidade_Acoes_Ordinarias"),
	opt(QuantityPreferred, Integer, "Quantidade_Acoes_Preferenciais"),
	opt(QuantityTotal, Integer, "Quantidade_Total_Acoes"),
}

// ipe and vlmo document indexes share one shape
var documentLayout = []Descriptor{
	must(CNPJ, TaxID, "CNPJ_Companhia", "CNPJ_CIA"),
	compName,
	opt(CVMCode, Integer, "Codigo_CVM", "CD_CVM"),
	must(RefDate, Date, "Data_Referencia"),
	opt(DeliveryDate, Date, "Data_Entrega"),
	must(Protocol, Text, "Protocolo_Entrega"),
	opt(Category, Text, "Categoria"),
	opt(DocType, Text, "Tipo"),
	opt(Species, Text, "Especie"),
	opt(Subject, Text, "Assunto"),
	opt(Version, Integer, "Versao"),
	opt(SourceURL, Text, "Link_Download"),
}

var vlmoMovementLayout = []Descriptor{
	must(CNPJ, TaxID, "CNPJ_Companhia"),
	compName,
	must(RefDate, Date, "Data_Referencia"),
	opt(Version, Integer, "Versao"),
	present(PersonGroup, Text, "Tipo_Cargo"),
	present(MovementType, Text, "Tipo_Movimentacao"),
	opt(OperationField, Operation, "Tipo_Operacao"),
	opt(AssetType, Text, "Tipo_Ativo"),
	opt(AssetCharacteristic, Text, "Caracteristica_Valor_Mobiliario"),
	opt(Intermediary, Text, "Intermediario"),
	opt(TransactionDate, Date, "Data_Movimentacao"),
	must(Quantity, Decimal, "Quantidade"),
	opt(UnitPrice, Decimal, "Preco_Unitario"),
	opt(TotalValue, Decimal, "Volume"),
}

var dividendLayout = []Descriptor{
	opt(CNPJ, TaxID, "CNPJ_CIA", "CNPJ_Companhia"),
	opt(CVMCode, Integer, "CD_CVM", "Codigo_CVM"),
	opt(Ticker, Text, "CD_ATIVO", "Codigo_Negociacao"),
	must(EventType, DividendType, "TP_PROVENTO", "Tipo_Provento"),
	opt(DeclarationDate, Date, "DT_DELIBERACAO", "Data_Aprovacao"),
	must(ExDate, Date, "DT_EX_PROVENTO", "Data_Ex"),
	opt(PaymentDate, Date, "DT_PAGAMENTO", "Data_Pagamento"),
	must(AmountPerShare, Decimal, "VL_PROVENTO_POR_ACAO", "Valor_Provento_Acao"),
	opt(TotalAmount, Decimal, "VL_TOTAL_PROVENTO", "Valor_Total_Provento"),
	opt(ShareClass, Text, "ESPECIE_ACAO", "Classe_Acao", "Tipo_Acao"),
}

var capitalCompositionLayout = []Descriptor{
	must(CNPJ, TaxID, "CNPJ_Companhia", "CNPJ_CIA"),
	must(RefDate, Date, "Data_Referencia", "DT_REFER"),
	opt(ApprovalDate, Date, "Data_Aprovacao", "DT_APROVACAO"),
	opt(Version, Integer, "Versao", "VERSAO"),
	opt(Value, Decimal, "Valor_Capital", "VL_CAPITAL"),
	opt(QuantityCommon, Integer, "Quantidade_Acoes_Ordinarias", "QT_ACOES_ORDINARIAS"),
	opt(QuantityPreferred, Integer, "Quantidade_Acoes_Preferenciais", "QT_ACOES_PREFERENCIAIS"),
	opt(QuantityTotal, Integer, "Quantidade_Total_Acoes", "QT_ACOES_TOTAL"),
}

var corporateEventLayout = []Descriptor{
	must(CNPJ, TaxID, "CNPJ_Companhia", "CNPJ_CIA"),
	opt(RefDate, Date, "Data_Referencia", "DT_REFER"),
	must(ApprovalDate, Date, "Data_Aprovacao", "DT_APROVACAO", "Data_Evento"),
	must(EventType, Text, "Tipo_Evento", "TP_EVENTO"),
	opt(Version, Integer, "Versao", "VERSAO"),
	opt(Value, Decimal, "Valor", "VL_EVENTO"),
	opt(QuantityCommon, Integer, "Quantidade_Acoes_Ordinarias", "QT_ACOES_ORDINARIAS"),
	opt(QuantityPreferred, Integer, "Quantidade_Acoes_Preferenciais", "QT_ACOES_PREFERENCIAIS"),
	opt(QuantityTotal, Integer, "Quantidade_Total_Acoes", "QT_ACOES_TOTAL"),
}

var issuanceLayout = []Descriptor{
	must(CNPJ, TaxID, "CNPJ_Emissor", "CNPJ_Companhia", "CNPJ_CIA"),
	opt(RefDate, Date, "Data_Referencia"),
	must(ApprovalDate, Date, "Data_Registro", "Data_Deliberacao", "DT_REGISTRO"),
	opt(SecurityType, Text, "Tipo_Valor_Mobiliario", "Valor_Mobiliario"),
	opt(Value, Decimal, "Valor_Total", "Valor_Total_Emissao", "VL_TOTAL"),
	opt(QuantityTotal, Integer, "Quantidade", "Quantidade_Total", "QT_TOTAL"),
}

func defaultLayouts() map[Key][]Descriptor {
	return map[Key][]Descriptor{
		{"DFP", LayoutStatement}:                         statementLayout,
		{"ITR", LayoutStatement}:                         statementLayout,
		{"CAD", LayoutRegistry}:                          registryLayout,
		{"FCA", LayoutSecurities}:                        securitiesLayout,
		{"FCA", LayoutGeneral}:                           generalLayout,
		{"FRE", LayoutActivity}:                          activityLayout,
		{"FRE", LayoutRiskFactor}:                        riskFactorLayout,
		{"FRE", LayoutShareholder}:                       shareholderLayout,
		{"FRE", LayoutAdministrator}:                     administratorLayout,
		{"FRE", LayoutCapitalIncrease}:                   capitalIncreaseLayout,
		{"IPE", LayoutIPEDocument}:                       documentLayout,
		{"VLMO", LayoutVLMODocument}:                     documentLayout,
		{"VLMO", LayoutVLMOMovement}:                     vlmoMovementLayout,
		{"PROVENTOS", LayoutDividend}:                    dividendLayout,
		{"COMPOSICAO_CAPITAL", LayoutCapitalComposition}: capitalCompositionLayout,
		{"EVENTO_CORPORATIVO", LayoutCorporateEvent}:     corporateEventLayout,
		{"EMISSAO", LayoutIssuance}:                      issuanceLayout,
	}
}
